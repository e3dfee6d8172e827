package tasks

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// StatusOpen means the task waits for a worker
	StatusOpen = "open"
	// StatusAssigned means a worker got the task
	StatusAssigned = "assigned"
	// StatusSubmitted means the worker handed in a result
	StatusSubmitted = "submitted"
	// StatusApproved means the client accepted the result
	StatusApproved = "approved"
	// StatusRejected means the client rejected the result
	StatusRejected = "rejected"
)

// DefaultApplicationWindowMinutes is used when an auto assigned task doesn't set a window length
const DefaultApplicationWindowMinutes = 60

// Task is the model for a task
type Task struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	OwnerID        primitive.ObjectID  `json:"ownerId" bson:"ownerId"`
	CreatedAt      time.Time           `json:"createdAt" bson:"createdAt"`
	LastModifiedAt time.Time           `json:"lastModifiedAt" bson:"lastModifiedAt"`
	Title          string              `json:"title" bson:"title" validate:"required"`
	Description    string              `json:"description" bson:"description" validate:"required"`
	Payout         float64             `json:"payout" bson:"payout" validate:"gt=0"`
	RequiredSkills []string            `json:"requiredSkills" bson:"requiredSkills"`
	Deadline       *time.Time          `json:"deadline,omitempty" bson:"deadline,omitempty"`
	Status         string              `json:"status" bson:"status" validate:"omitempty,oneof=open assigned submitted approved rejected"`
	AssigneeID     *primitive.ObjectID `json:"assigneeId,omitempty" bson:"assigneeId,omitempty"`

	AutoAssign               bool `json:"autoAssign" bson:"autoAssign"`
	ApplicationWindowMinutes int  `json:"applicationWindowMinutes" bson:"applicationWindowMinutes" validate:"omitempty,min=5"`
	MaxExtensions            *int `json:"maxExtensions,omitempty" bson:"maxExtensions,omitempty" validate:"omitempty,min=0"`
}

// TaskUpdate is the view of a task for an update
type TaskUpdate struct {
	ID             primitive.ObjectID  `bson:"_id" json:"-"`
	OwnerID        primitive.ObjectID  `bson:"ownerId" json:"-"`
	CreatedAt      time.Time           `bson:"createdAt" json:"-"`
	LastModifiedAt time.Time           `bson:"lastModifiedAt" json:"-"`
	Title          string              `json:"title" bson:"title" validate:"required"`
	Description    string              `json:"description" bson:"description" validate:"required"`
	Payout         float64             `json:"payout" bson:"payout" validate:"gt=0"`
	RequiredSkills []string            `json:"requiredSkills" bson:"requiredSkills"`
	Deadline       *time.Time          `json:"deadline,omitempty" bson:"deadline,omitempty"`
	Status         string              `json:"-" bson:"status"`
	AssigneeID     *primitive.ObjectID `json:"-" bson:"assigneeId,omitempty"`

	AutoAssign               bool `json:"autoAssign" bson:"autoAssign"`
	ApplicationWindowMinutes int  `json:"applicationWindowMinutes" bson:"applicationWindowMinutes" validate:"omitempty,min=5"`
	MaxExtensions            *int `json:"maxExtensions,omitempty" bson:"maxExtensions,omitempty" validate:"omitempty,min=0"`
}

// IsAssignable reports whether nobody took the task yet
func (t *Task) IsAssignable() bool {
	return t.Status == StatusOpen && t.AssigneeID == nil
}

// WindowMinutes returns the configured window length or the default
func (t *Task) WindowMinutes() int {
	if t.ApplicationWindowMinutes == 0 {
		return DefaultApplicationWindowMinutes
	}

	return t.ApplicationWindowMinutes
}
