package notifications

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// SeverityInfo is a neutral message
	SeverityInfo = "info"
	// SeveritySuccess reports a positive outcome
	SeveritySuccess = "success"
	// SeverityWarning needs the user's attention
	SeverityWarning = "warning"
	// SeverityError reports a failure
	SeverityError = "error"
)

// Notification is a message shown to a user
type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Severity  string             `json:"severity" bson:"severity"`
	Read      bool               `json:"read" bson:"read"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// Dispatcher delivers notifications, callers treat it as fire and forget
type Dispatcher interface {
	Notify(ctx context.Context, userID primitive.ObjectID, title string, message string, severity string) error
}
