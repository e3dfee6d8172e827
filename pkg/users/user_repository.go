package users

import (
	"context"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepositoryInterface is the interface for a UserRepository
type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*User, error)
}

// UserRepository reads user profiles
type UserRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// FindByID finds a user by ID
func (s UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var u = User{}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := s.DB.FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	err = result.Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIDs finds all users of the given IDs, unknown IDs are skipped
func (s UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*User, error) {
	var found []*User

	if len(ids) == 0 {
		return found, nil
	}

	cursor, err := s.DB.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &found)
	if err != nil {
		return nil, err
	}

	return found, nil
}
