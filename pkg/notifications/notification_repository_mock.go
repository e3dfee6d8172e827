package notifications

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockNotificationRepository keeps notifications in memory
type MockNotificationRepository struct {
	Notifications []*Notification
	mutex         sync.Mutex
}

// Add adds a notification
func (m *MockNotificationRepository) Add(_ context.Context, notification *Notification) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()
	m.Notifications = append(m.Notifications, notification)
	return nil
}

// FindAll lists notifications of a user, newest first
func (m *MockNotificationRepository) FindAll(_ context.Context, userID primitive.ObjectID, unreadOnly bool, page int, pageSize int) ([]Notification, int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var matching []Notification
	for i := len(m.Notifications) - 1; i >= 0; i-- {
		n := m.Notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		matching = append(matching, *n)
	}

	offset := page * pageSize
	if offset >= len(matching) {
		return []Notification{}, len(matching), nil
	}

	end := offset + pageSize
	if end > len(matching) {
		end = len(matching)
	}

	return matching[offset:end], len(matching), nil
}

// MarkRead marks a notification as read
func (m *MockNotificationRepository) MarkRead(_ context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, n := range m.Notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.Read = true
			return nil
		}
	}

	return ErrNotificationNotFound
}

// MarkAllRead marks every notification of a user as read
func (m *MockNotificationRepository) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	changed := 0
	for _, n := range m.Notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}

	return changed, nil
}

// Delete removes a notification of a user
func (m *MockNotificationRepository) Delete(_ context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, n := range m.Notifications {
		if n.ID == notificationID && n.UserID == userID {
			m.Notifications = append(m.Notifications[:i], m.Notifications[i+1:]...)
			return nil
		}
	}

	return ErrNotificationNotFound
}

// ForUser returns all notifications a user received
func (m *MockNotificationRepository) ForUser(userID primitive.ObjectID) []Notification {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var found []Notification
	for _, n := range m.Notifications {
		if n.UserID == userID {
			found = append(found, *n)
		}
	}

	return found
}
