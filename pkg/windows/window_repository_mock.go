package windows

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockWindowRepository is an in memory WindowRepositoryInterface with the same guards as the mongo one
type MockWindowRepository struct {
	Windows []*ApplicationWindow
	// FindErr makes every find fail when set
	FindErr error
	// BeforeWrite runs right before a guarded write evaluates its filter, tests use it to interleave
	BeforeWrite func(window *ApplicationWindow)

	mutex sync.Mutex
}

func (m *MockWindowRepository) copyOf(window *ApplicationWindow) *ApplicationWindow {
	c := *window
	if window.Resolution != nil {
		r := *window.Resolution
		c.Resolution = &r
	}
	return &c
}

func (m *MockWindowRepository) byID(id primitive.ObjectID) *ApplicationWindow {
	for _, w := range m.Windows {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (m *MockWindowRepository) beforeWrite(window *ApplicationWindow) {
	if m.BeforeWrite != nil {
		m.BeforeWrite(window)
	}
}

// Add adds a window
func (m *MockWindowRepository) Add(_ context.Context, window *ApplicationWindow) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, w := range m.Windows {
		if w.TaskID == window.TaskID && w.Status == StatusActive && window.Status == StatusActive {
			return ErrConflict
		}
	}

	window.ID = primitive.NewObjectID()
	window.CreatedAt = time.Now()
	window.LastModifiedAt = window.CreatedAt

	m.Windows = append(m.Windows, m.copyOf(window))
	return nil
}

// FindActiveByTaskID finds the active window of a task
func (m *MockWindowRepository) FindActiveByTaskID(_ context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}

	for _, w := range m.Windows {
		if w.TaskID == taskID && w.Status == StatusActive {
			return m.copyOf(w), nil
		}
	}

	return nil, ErrWindowNotFound
}

// FindLatestByTaskID finds the last window added for a task
func (m *MockWindowRepository) FindLatestByTaskID(_ context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}

	for i := len(m.Windows) - 1; i >= 0; i-- {
		if m.Windows[i].TaskID == taskID {
			return m.copyOf(m.Windows[i]), nil
		}
	}

	return nil, ErrWindowNotFound
}

// FindExpired finds expired active windows
func (m *MockWindowRepository) FindExpired(_ context.Context, at time.Time, limit int) ([]*ApplicationWindow, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}

	var found []*ApplicationWindow
	for _, w := range m.Windows {
		if w.Status == StatusActive && w.IsExpiredAt(at) {
			found = append(found, m.copyOf(w))
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].WindowEnd.Before(found[j].WindowEnd)
	})

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	return found, nil
}

// FindUnfinalized finds completed windows that are not finalized yet
func (m *MockWindowRepository) FindUnfinalized(_ context.Context, limit int) ([]*ApplicationWindow, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}

	var found []*ApplicationWindow
	for _, w := range m.Windows {
		if w.Status == StatusCompleted && w.Resolution != nil && !w.Resolution.Finalized {
			found = append(found, m.copyOf(w))
		}
		if limit > 0 && len(found) == limit {
			break
		}
	}

	return found, nil
}

func (m *MockWindowRepository) matches(stored *ApplicationWindow, observed *ApplicationWindow, expiredBy time.Time) bool {
	if stored == nil || stored.Status != StatusActive {
		return false
	}
	if stored.ExtensionsCount != observed.ExtensionsCount || stored.ApplicationsCount != observed.ApplicationsCount {
		return false
	}
	if !expiredBy.IsZero() && !stored.IsExpiredAt(expiredBy) {
		return false
	}
	return true
}

// Extend extends a window
func (m *MockWindowRepository) Extend(_ context.Context, window *ApplicationWindow, newEnd time.Time, expiredBy time.Time) (bool, error) {
	m.beforeWrite(window)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(window.ID)
	if !m.matches(stored, window, expiredBy) || stored.ExtensionsCount >= stored.MaxExtensions {
		return false, nil
	}

	stored.WindowEnd = newEnd
	stored.ExtensionsCount++
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Cancel cancels a window
func (m *MockWindowRepository) Cancel(_ context.Context, window *ApplicationWindow, expiredBy time.Time) (bool, error) {
	m.beforeWrite(window)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(window.ID)
	if !m.matches(stored, window, expiredBy) {
		return false, nil
	}

	stored.Status = StatusCancelled
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Complete completes a window
func (m *MockWindowRepository) Complete(_ context.Context, window *ApplicationWindow, resolution Resolution, expiredBy time.Time) (bool, error) {
	m.beforeWrite(window)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(window.ID)
	if stored == nil || stored.Status != StatusActive || !stored.IsExpiredAt(expiredBy) ||
		stored.ApplicationsCount != window.ApplicationsCount {
		return false, nil
	}

	stored.Status = StatusCompleted
	stored.Resolution = &resolution
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Finalize finalizes a completed window
func (m *MockWindowRepository) Finalize(_ context.Context, windowID primitive.ObjectID, superseded bool) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(windowID)
	if stored == nil || stored.Status != StatusCompleted || stored.Resolution == nil || stored.Resolution.Finalized {
		return false, nil
	}

	stored.Resolution.Finalized = true
	stored.Resolution.Superseded = superseded
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Admit counts an application into a window
func (m *MockWindowRepository) Admit(_ context.Context, windowID primitive.ObjectID, appliedAt time.Time) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(windowID)
	if stored == nil || stored.Status != StatusActive || stored.IsExpiredAt(appliedAt) {
		return false, nil
	}

	stored.ApplicationsCount++
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Reconcile overwrites the application count of an expired window
func (m *MockWindowRepository) Reconcile(_ context.Context, window *ApplicationWindow, count int, expiredBy time.Time) (bool, error) {
	m.beforeWrite(window)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(window.ID)
	if !m.matches(stored, window, expiredBy) {
		return false, nil
	}

	stored.ApplicationsCount = count
	stored.LastModifiedAt = time.Now()
	return true, nil
}

// Get returns a snapshot of a stored window, tests use it to inspect state
func (m *MockWindowRepository) Get(windowID primitive.ObjectID) *ApplicationWindow {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := m.byID(windowID)
	if stored == nil {
		return nil
	}
	return m.copyOf(stored)
}
