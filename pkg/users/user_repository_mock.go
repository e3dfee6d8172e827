package users

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserRepository is an in memory UserRepositoryInterface for tests
type MockUserRepository struct {
	Users []*User
}

// FindByID finds a user by ID
func (r *MockUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	for _, user := range r.Users {
		if user.ID.Hex() == id {
			return user, nil
		}
	}

	return nil, errors.New("user not found")
}

// FindByIDs finds all users of the given IDs
func (r *MockUserRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*User, error) {
	var found []*User
	for _, id := range ids {
		for _, user := range r.Users {
			if user.ID == id {
				found = append(found, user)
			}
		}
	}

	return found, nil
}
