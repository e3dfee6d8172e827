package tasks

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockTaskRepository is an in memory TaskRepositoryInterface for tests
type MockTaskRepository struct {
	Tasks []*Task
	// AssignErr makes AssignWorker fail when set
	AssignErr error

	mutex sync.Mutex
}

// Add adds a task
func (m *MockTaskRepository) Add(_ context.Context, task *Task) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task.ID = primitive.NewObjectID()
	task.CreatedAt = time.Now()
	task.LastModifiedAt = time.Now()
	if task.Status == "" {
		task.Status = StatusOpen
	}

	m.Tasks = append(m.Tasks, task)
	return nil
}

// Update updates a task
func (m *MockTaskRepository) Update(_ context.Context, task *TaskUpdate) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, t := range m.Tasks {
		if t.ID == task.ID {
			updated := Task(*task)
			m.Tasks[i] = &updated
			return nil
		}
	}

	return ErrTaskNotFound
}

// FindAll returns every task matching the equality filters
func (m *MockTaskRepository) FindAll(_ context.Context, page int, pageSize int, filters []Filter) ([]Task, int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var matching []Task
	for _, t := range m.Tasks {
		if matchesFilters(t, filters) {
			matching = append(matching, *t)
		}
	}

	offset := page * pageSize
	if offset >= len(matching) {
		return []Task{}, len(matching), nil
	}

	end := offset + pageSize
	if end > len(matching) {
		end = len(matching)
	}

	return matching[offset:end], len(matching), nil
}

func matchesFilters(task *Task, filters []Filter) bool {
	for _, filter := range filters {
		switch filter.Field {
		case "status":
			if task.Status != filter.Value {
				return false
			}
		case "ownerId":
			if task.OwnerID != filter.Value {
				return false
			}
		case "assigneeId":
			if task.AssigneeID == nil || *task.AssigneeID != filter.Value {
				return false
			}
		}
	}

	return true
}

// FindByID finds a task
func (m *MockTaskRepository) FindByID(_ context.Context, taskID primitive.ObjectID) (*Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, t := range m.Tasks {
		if t.ID == taskID {
			copied := *t
			return &copied, nil
		}
	}

	return nil, ErrTaskNotFound
}

// FindUpdatableByID finds a task of an owner
func (m *MockTaskRepository) FindUpdatableByID(ctx context.Context, taskID string, ownerID string) (*TaskUpdate, error) {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, err
	}

	task, err := m.FindByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	if task.OwnerID.Hex() != ownerID {
		return nil, ErrTaskNotFound
	}

	return (*TaskUpdate)(task), nil
}

// AssignWorker mirrors the conditional update of the mongo implementation
func (m *MockTaskRepository) AssignWorker(_ context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error) {
	return m.assign(taskID, workerID, true)
}

// Claim assigns a worker to an open task only
func (m *MockTaskRepository) Claim(_ context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error) {
	return m.assign(taskID, workerID, false)
}

func (m *MockTaskRepository) assign(taskID primitive.ObjectID, workerID primitive.ObjectID, repeatable bool) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.AssignErr != nil {
		return false, m.AssignErr
	}

	for _, t := range m.Tasks {
		if t.ID != taskID {
			continue
		}

		if !t.IsAssignable() {
			return repeatable && t.AssigneeID != nil && *t.AssigneeID == workerID, nil
		}

		t.Status = StatusAssigned
		t.AssigneeID = &workerID
		t.LastModifiedAt = time.Now()
		return true, nil
	}

	return false, nil
}

// SetStatus moves a task to another status like a later workflow step would
func (m *MockTaskRepository) SetStatus(taskID primitive.ObjectID, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, t := range m.Tasks {
		if t.ID == taskID {
			t.Status = status
		}
	}
}
