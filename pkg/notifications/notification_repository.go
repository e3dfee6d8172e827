package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotificationNotFound is returned when no notification of the user matches
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepositoryInterface stores notifications
type NotificationRepositoryInterface interface {
	Add(ctx context.Context, notification *Notification) error
	FindAll(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, page int, pageSize int) ([]Notification, int, error)
	MarkRead(ctx context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int, error)
	Delete(ctx context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error
}

// MongoDBNotificationRepository stores notifications in mongo
type MongoDBNotificationRepository struct {
	DB *mongo.Collection
}

// Add adds a notification
func (r *MongoDBNotificationRepository) Add(ctx context.Context, notification *Notification) error {
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()

	_, err := r.DB.InsertOne(ctx, notification)
	return err
}

// FindAll lists the newest notifications of a user first
func (r *MongoDBNotificationRepository) FindAll(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, page int, pageSize int) ([]Notification, int, error) {
	found := []Notification{}

	filter := bson.D{{Key: "userId", Value: userID}}
	if unreadOnly {
		filter = append(filter, bson.E{Key: "read", Value: false})
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"createdAt": -1})
	findOptions.SetSkip(int64(page * pageSize))
	findOptions.SetLimit(int64(pageSize))

	cursor, err := r.DB.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}

	count, err := r.DB.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	err = cursor.All(ctx, &found)
	if err != nil {
		return nil, 0, err
	}

	return found, int(count), nil
}

// MarkRead marks a notification of the user as read
func (r *MongoDBNotificationRepository) MarkRead(ctx context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error {
	result, err := r.DB.UpdateOne(ctx, bson.M{"_id": notificationID, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAllRead marks every unread notification of the user as read and returns how many changed
func (r *MongoDBNotificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int, error) {
	result, err := r.DB.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}

	return int(result.ModifiedCount), nil
}

// Delete deletes a notification of the user
func (r *MongoDBNotificationRepository) Delete(ctx context.Context, notificationID primitive.ObjectID, userID primitive.ObjectID) error {
	result, err := r.DB.DeleteOne(ctx, bson.M{"_id": notificationID, "userId": userID})
	if err != nil {
		return err
	}

	if result.DeletedCount != 1 {
		return ErrNotificationNotFound
	}

	return nil
}

// EnsureIndexes creates the indexes the queries rely on
func (r *MongoDBNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.DB.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
