package windows

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockApplicationRepository is an in memory ApplicationRepositoryInterface for tests
type MockApplicationRepository struct {
	Applications []*Application
	// AddErr makes Add fail when set
	AddErr error
	// MarkErr makes MarkSelected fail when set
	MarkErr error

	mutex sync.Mutex
}

// Add adds an application
func (m *MockApplicationRepository) Add(_ context.Context, application *Application) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}

	for _, a := range m.Applications {
		if a.TaskID == application.TaskID && a.WorkerID == application.WorkerID {
			return ErrDuplicate
		}
	}

	application.ID = primitive.NewObjectID()
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now()
	}

	c := *application
	m.Applications = append(m.Applications, &c)
	return nil
}

// Remove removes an application
func (m *MockApplicationRepository) Remove(_ context.Context, applicationID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, a := range m.Applications {
		if a.ID == applicationID {
			m.Applications = append(m.Applications[:i], m.Applications[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockApplicationRepository) filter(match func(a *Application) bool) []*Application {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	found := []*Application{}
	for _, a := range m.Applications {
		if match(a) {
			c := *a
			found = append(found, &c)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].AppliedAt.Equal(found[j].AppliedAt) {
			return found[i].ID.Hex() < found[j].ID.Hex()
		}
		return found[i].AppliedAt.Before(found[j].AppliedAt)
	})

	return found
}

// FindByTaskID finds all applications for a task
func (m *MockApplicationRepository) FindByTaskID(_ context.Context, taskID primitive.ObjectID) ([]*Application, error) {
	return m.filter(func(a *Application) bool { return a.TaskID == taskID }), nil
}

// FindByWindowID finds all applications of a window
func (m *MockApplicationRepository) FindByWindowID(_ context.Context, windowID primitive.ObjectID) ([]*Application, error) {
	return m.filter(func(a *Application) bool { return a.WindowID == windowID }), nil
}

// FindByTaskAndWorker finds the application of a worker
func (m *MockApplicationRepository) FindByTaskAndWorker(_ context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (*Application, error) {
	found := m.filter(func(a *Application) bool { return a.TaskID == taskID && a.WorkerID == workerID })
	if len(found) == 0 {
		return nil, ErrApplicationNotFound
	}
	return found[0], nil
}

// MarkSelected marks an application as selected
func (m *MockApplicationRepository) MarkSelected(_ context.Context, applicationID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.MarkErr != nil {
		return m.MarkErr
	}

	for _, a := range m.Applications {
		if a.ID == applicationID {
			a.Selected = true
			return nil
		}
	}
	return ErrApplicationNotFound
}
