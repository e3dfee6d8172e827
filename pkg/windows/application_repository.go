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

// ErrApplicationNotFound is returned when no application matches
var ErrApplicationNotFound = errors.New("application not found")

// ApplicationRepositoryInterface stores Applications
type ApplicationRepositoryInterface interface {
	// Add inserts an application, a second one for the same task and worker fails with ErrDuplicate
	Add(ctx context.Context, application *Application) error
	Remove(ctx context.Context, applicationID primitive.ObjectID) error
	// FindByTaskID lists the applications of a task ordered by appliedAt
	FindByTaskID(ctx context.Context, taskID primitive.ObjectID) ([]*Application, error)
	FindByWindowID(ctx context.Context, windowID primitive.ObjectID) ([]*Application, error)
	FindByTaskAndWorker(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (*Application, error)
	MarkSelected(ctx context.Context, applicationID primitive.ObjectID) error
}

// MongoDBApplicationRepository stores applications in mongo
type MongoDBApplicationRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add adds an application
func (r *MongoDBApplicationRepository) Add(ctx context.Context, application *Application) error {
	application.ID = primitive.NewObjectID()
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now()
	}

	_, err := r.DB.InsertOne(ctx, application)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(ErrDuplicate, "worker already applied for this task")
	}

	return err
}

// Remove deletes an application
func (r *MongoDBApplicationRepository) Remove(ctx context.Context, applicationID primitive.ObjectID) error {
	_, err := r.DB.DeleteOne(ctx, bson.M{"_id": applicationID})
	return err
}

func (r *MongoDBApplicationRepository) findMany(ctx context.Context, filter interface{}) ([]*Application, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "appliedAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.DB.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}

	applications := []*Application{}
	err = cursor.All(ctx, &applications)
	if err != nil {
		return nil, err
	}

	return applications, nil
}

// FindByTaskID finds all applications for a task
func (r *MongoDBApplicationRepository) FindByTaskID(ctx context.Context, taskID primitive.ObjectID) ([]*Application, error) {
	return r.findMany(ctx, bson.M{"taskId": taskID})
}

// FindByWindowID finds all applications admitted to a window
func (r *MongoDBApplicationRepository) FindByWindowID(ctx context.Context, windowID primitive.ObjectID) ([]*Application, error) {
	return r.findMany(ctx, bson.M{"windowId": windowID})
}

// FindByTaskAndWorker finds the application of a worker for a task
func (r *MongoDBApplicationRepository) FindByTaskAndWorker(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (*Application, error) {
	application := Application{}

	result := r.DB.FindOne(ctx, bson.M{"taskId": taskID, "workerId": workerID})
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, ErrApplicationNotFound
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	err := result.Decode(&application)
	if err != nil {
		return nil, err
	}

	return &application, nil
}

// MarkSelected flags an application as the selected one, repeating it is harmless
func (r *MongoDBApplicationRepository) MarkSelected(ctx context.Context, applicationID primitive.ObjectID) error {
	result, err := r.DB.UpdateOne(ctx, bson.M{"_id": applicationID}, bson.M{"$set": bson.M{"selected": true}})
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return ErrApplicationNotFound
	}

	return nil
}

// EnsureIndexes creates the unique application index
func (r *MongoDBApplicationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.DB.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "taskId", Value: 1}, {Key: "workerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("one_application_per_worker"),
		},
		{Keys: bson.D{{Key: "windowId", Value: 1}, {Key: "appliedAt", Value: 1}}},
	})
	return err
}
