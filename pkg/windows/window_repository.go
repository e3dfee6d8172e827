package windows

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WindowRepositoryInterface stores ApplicationWindows.
// Every mutating method is a conditional write, it reports false instead of an error when the guard didn't match.
type WindowRepositoryInterface interface {
	// Add inserts an active window, it fails with ErrConflict if the task already has one
	Add(ctx context.Context, window *ApplicationWindow) error
	FindActiveByTaskID(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error)
	FindLatestByTaskID(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error)
	FindExpired(ctx context.Context, at time.Time, limit int) ([]*ApplicationWindow, error)
	FindUnfinalized(ctx context.Context, limit int) ([]*ApplicationWindow, error)
	// Extend moves the window end, the guard is the observed extension and application count.
	// A non zero expiredBy additionally requires windowEnd <= expiredBy.
	Extend(ctx context.Context, window *ApplicationWindow, newEnd time.Time, expiredBy time.Time) (bool, error)
	Cancel(ctx context.Context, window *ApplicationWindow, expiredBy time.Time) (bool, error)
	Complete(ctx context.Context, window *ApplicationWindow, resolution Resolution, expiredBy time.Time) (bool, error)
	Finalize(ctx context.Context, windowID primitive.ObjectID, superseded bool) (bool, error)
	// Admit counts an application into a window that is still active and ends after appliedAt
	Admit(ctx context.Context, windowID primitive.ObjectID, appliedAt time.Time) (bool, error)
	// Reconcile overwrites the application count of an expired window with the number of stored applications
	Reconcile(ctx context.Context, window *ApplicationWindow, count int, expiredBy time.Time) (bool, error)
}

// MongoDBWindowRepository stores windows in mongo
type MongoDBWindowRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add inserts a window
func (r *MongoDBWindowRepository) Add(ctx context.Context, window *ApplicationWindow) error {
	window.ID = primitive.NewObjectID()
	window.CreatedAt = time.Now()
	window.LastModifiedAt = window.CreatedAt

	_, err := r.DB.InsertOne(ctx, window)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(ErrConflict, "task already has an active application window")
	}

	return err
}

func (r *MongoDBWindowRepository) findOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*ApplicationWindow, error) {
	window := ApplicationWindow{}

	result := r.DB.FindOne(ctx, filter, opts...)
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, ErrWindowNotFound
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	err := result.Decode(&window)
	if err != nil {
		return nil, err
	}

	return &window, nil
}

func (r *MongoDBWindowRepository) findMany(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*ApplicationWindow, error) {
	found := []*ApplicationWindow{}

	cursor, err := r.DB.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &found)
	if err != nil {
		return nil, err
	}

	return found, nil
}

// FindActiveByTaskID finds the active window of a task
func (r *MongoDBWindowRepository) FindActiveByTaskID(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	return r.findOne(ctx, bson.M{"taskId": taskID, "status": StatusActive})
}

// FindLatestByTaskID finds the most recently opened window of a task, whatever its status
func (r *MongoDBWindowRepository) FindLatestByTaskID(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	return r.findOne(ctx, bson.M{"taskId": taskID}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// FindExpired finds active windows whose end is at or before the given time, oldest first
func (r *MongoDBWindowRepository) FindExpired(ctx context.Context, at time.Time, limit int) ([]*ApplicationWindow, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.M{"windowEnd": 1})
	findOptions.SetLimit(int64(limit))

	return r.findMany(ctx, bson.M{"status": StatusActive, "windowEnd": bson.M{"$lte": at}}, findOptions)
}

// FindUnfinalized finds completed windows whose assignment still has to be confirmed
func (r *MongoDBWindowRepository) FindUnfinalized(ctx context.Context, limit int) ([]*ApplicationWindow, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.M{"resolution.resolvedAt": 1})
	findOptions.SetLimit(int64(limit))

	return r.findMany(ctx, bson.M{"status": StatusCompleted, "resolution.finalized": false}, findOptions)
}

func guard(window *ApplicationWindow, expiredBy time.Time) bson.D {
	filter := bson.D{
		{Key: "_id", Value: window.ID},
		{Key: "status", Value: StatusActive},
		{Key: "extensionsCount", Value: window.ExtensionsCount},
		{Key: "applicationsCount", Value: window.ApplicationsCount},
	}

	if !expiredBy.IsZero() {
		filter = append(filter, bson.E{Key: "windowEnd", Value: bson.M{"$lte": expiredBy}})
	}

	return filter
}

// Extend extends a window
func (r *MongoDBWindowRepository) Extend(ctx context.Context, window *ApplicationWindow, newEnd time.Time, expiredBy time.Time) (bool, error) {
	filter := guard(window, expiredBy)
	filter = append(filter, bson.E{Key: "$expr", Value: bson.M{"$lt": bson.A{"$extensionsCount", "$maxExtensions"}}})

	result, err := r.DB.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"windowEnd":      newEnd,
			"lastModifiedAt": time.Now(),
		},
		"$inc": bson.M{"extensionsCount": 1},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// Cancel cancels a window nobody applied to
func (r *MongoDBWindowRepository) Cancel(ctx context.Context, window *ApplicationWindow, expiredBy time.Time) (bool, error) {
	result, err := r.DB.UpdateOne(ctx, guard(window, expiredBy), bson.M{
		"$set": bson.M{
			"status":         StatusCancelled,
			"lastModifiedAt": time.Now(),
		},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// Complete completes an expired window with the selected application
func (r *MongoDBWindowRepository) Complete(ctx context.Context, window *ApplicationWindow, resolution Resolution, expiredBy time.Time) (bool, error) {
	result, err := r.DB.UpdateOne(ctx, bson.M{
		"_id":               window.ID,
		"status":            StatusActive,
		"applicationsCount": window.ApplicationsCount,
		"windowEnd":         bson.M{"$lte": expiredBy},
	}, bson.M{
		"$set": bson.M{
			"status":         StatusCompleted,
			"resolution":     resolution,
			"lastModifiedAt": time.Now(),
		},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// Finalize marks the resolution of a completed window as applied
func (r *MongoDBWindowRepository) Finalize(ctx context.Context, windowID primitive.ObjectID, superseded bool) (bool, error) {
	result, err := r.DB.UpdateOne(ctx, bson.M{
		"_id":                  windowID,
		"status":               StatusCompleted,
		"resolution.finalized": false,
	}, bson.M{
		"$set": bson.M{
			"resolution.finalized":  true,
			"resolution.superseded": superseded,
			"lastModifiedAt":        time.Now(),
		},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// Admit counts an application into an open window
func (r *MongoDBWindowRepository) Admit(ctx context.Context, windowID primitive.ObjectID, appliedAt time.Time) (bool, error) {
	result, err := r.DB.UpdateOne(ctx, bson.M{
		"_id":       windowID,
		"status":    StatusActive,
		"windowEnd": bson.M{"$gt": appliedAt},
	}, bson.M{
		"$inc": bson.M{"applicationsCount": 1},
		"$set": bson.M{"lastModifiedAt": time.Now()},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// Reconcile sets the application count of an expired window
func (r *MongoDBWindowRepository) Reconcile(ctx context.Context, window *ApplicationWindow, count int, expiredBy time.Time) (bool, error) {
	result, err := r.DB.UpdateOne(ctx, guard(window, expiredBy), bson.M{
		"$set": bson.M{
			"applicationsCount": count,
			"lastModifiedAt":    time.Now(),
		},
	})
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

// EnsureIndexes creates the indexes the queries and the one-active-window invariant rely on
func (r *MongoDBWindowRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.DB.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "taskId", Value: 1}},
			Options: options.Index().
				SetName("one_active_window_per_task").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": StatusActive}),
		},
		{Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "windowEnd", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "resolution.finalized", Value: 1}}},
	})
	return err
}
