package users

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// RoleClient posts tasks
	RoleClient = "client"
	// RoleWorker applies for tasks
	RoleWorker = "worker"
)

// User is the profile of a marketplace member, accounts themselves live at the identity provider
type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id"`
	Firstname      string             `json:"firstname" bson:"firstname"`
	Lastname       string             `json:"lastname" bson:"lastname"`
	Email          string             `json:"email" bson:"email"`
	Role           string             `json:"role" bson:"role"`
	Rating         float64            `json:"rating" bson:"rating"`
	Skills         []string           `json:"skills" bson:"skills"`
	DeviceTokens   []DeviceToken      `json:"-" bson:"deviceTokens"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	LastModifiedAt time.Time          `json:"lastModifiedAt" bson:"lastModifiedAt"`
}

// DeviceToken is a push token of one of the user's devices
type DeviceToken struct {
	Token     string    `json:"token" bson:"token"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// FullName returns first and last name
func (u *User) FullName() string {
	if u.Lastname == "" {
		return u.Firstname
	}

	return u.Firstname + " " + u.Lastname
}
