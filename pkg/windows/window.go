package windows

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of an ApplicationWindow
type Status string

const (
	// StatusActive accepts applications until WindowEnd
	StatusActive Status = "active"
	// StatusCompleted means a worker was selected, it is terminal
	StatusCompleted Status = "completed"
	// StatusCancelled means nobody applied and no extension was left, it is terminal
	StatusCancelled Status = "cancelled"
)

// MinWindowMinutes is the shortest window that can be opened
const MinWindowMinutes = 5

// ApplicationWindow is the bounded period in which workers may apply for an auto assigned task
type ApplicationWindow struct {
	ID                       primitive.ObjectID `json:"id" bson:"_id"`
	TaskID                   primitive.ObjectID `json:"taskId" bson:"taskId"`
	ApplicationWindowMinutes int                `json:"applicationWindowMinutes" bson:"applicationWindowMinutes"`
	WindowStart              time.Time          `json:"windowStart" bson:"windowStart"`
	WindowEnd                time.Time          `json:"windowEnd" bson:"windowEnd"`
	ExtensionsCount          int                `json:"extensionsCount" bson:"extensionsCount"`
	MaxExtensions            int                `json:"maxExtensions" bson:"maxExtensions"`
	// ApplicationsCount counts admitted applications, extend and cancel only succeed while it is zero
	ApplicationsCount int         `json:"applicationsCount" bson:"applicationsCount"`
	Status            Status      `json:"status" bson:"status"`
	Resolution        *Resolution `json:"resolution,omitempty" bson:"resolution,omitempty"`
	CreatedAt         time.Time   `json:"createdAt" bson:"createdAt"`
	LastModifiedAt    time.Time   `json:"lastModifiedAt" bson:"lastModifiedAt"`
}

// Resolution records the worker picked when a window completed.
// Until Finalized is set the selected flag and the task assignment may still be missing.
type Resolution struct {
	ApplicationID primitive.ObjectID `json:"applicationId" bson:"applicationId"`
	WorkerID      primitive.ObjectID `json:"workerId" bson:"workerId"`
	ResolvedAt    time.Time          `json:"resolvedAt" bson:"resolvedAt"`
	Finalized     bool               `json:"finalized" bson:"finalized"`
	// Superseded is set when the task was no longer open at finalization
	Superseded bool `json:"superseded" bson:"superseded"`
}

// Duration is the configured length of one window period, extensions reuse it
func (w *ApplicationWindow) Duration() time.Duration {
	return time.Duration(w.ApplicationWindowMinutes) * time.Minute
}

// IsExpiredAt reports whether the window end has been reached
func (w *ApplicationWindow) IsExpiredAt(t time.Time) bool {
	return !w.WindowEnd.After(t)
}

// IsTerminal reports whether the status can't change anymore
func (w *ApplicationWindow) IsTerminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusCancelled
}
