package windows

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Application is a worker's request to get an auto assigned task
type Application struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	TaskID    primitive.ObjectID `json:"taskId" bson:"taskId"`
	WindowID  primitive.ObjectID `json:"windowId" bson:"windowId"`
	WorkerID  primitive.ObjectID `json:"workerId" bson:"workerId"`
	AppliedAt time.Time          `json:"appliedAt" bson:"appliedAt"`
	Selected  bool               `json:"selected" bson:"selected"`
}
