package tasks

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

// ErrTaskNotFound is returned when no task matches
var ErrTaskNotFound = errors.New("task not found")

// Filter is a model for the rest api filter
type Filter struct {
	Field    string
	Value    interface{}
	Operator string
}

// TaskRepositoryInterface is an interface for a *MongoDBTaskRepository
type TaskRepositoryInterface interface {
	Add(ctx context.Context, task *Task) error
	Update(ctx context.Context, task *TaskUpdate) error
	FindAll(ctx context.Context, page int, pageSize int, filters []Filter) ([]Task, int, error)
	FindByID(ctx context.Context, taskID primitive.ObjectID) (*Task, error)
	FindUpdatableByID(ctx context.Context, taskID string, ownerID string) (*TaskUpdate, error)
	// AssignWorker moves an open task to assigned, it reports false if the task was taken by somebody else
	AssignWorker(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error)
	// Claim is AssignWorker without the repeat for the same worker
	Claim(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error)
}

// MongoDBTaskRepository does everything related to storing and finding tasks
type MongoDBTaskRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add adds a task
func (s *MongoDBTaskRepository) Add(ctx context.Context, task *Task) error {
	task.CreatedAt = time.Now()
	task.LastModifiedAt = time.Now()
	task.ID = primitive.NewObjectID()

	if task.Status == "" {
		task.Status = StatusOpen
	}

	_, err := s.DB.InsertOne(ctx, task)
	return err
}

// Update updates the owner editable fields of a task
func (s *MongoDBTaskRepository) Update(ctx context.Context, task *TaskUpdate) error {
	task.LastModifiedAt = time.Now()

	result, err := s.DB.UpdateOne(ctx, bson.M{"_id": task.ID, "ownerId": task.OwnerID}, bson.M{"$set": bson.M{
		"title":                    task.Title,
		"description":              task.Description,
		"payout":                   task.Payout,
		"requiredSkills":           task.RequiredSkills,
		"deadline":                 task.Deadline,
		"autoAssign":               task.AutoAssign,
		"applicationWindowMinutes": task.ApplicationWindowMinutes,
		"maxExtensions":            task.MaxExtensions,
		"lastModifiedAt":           task.LastModifiedAt,
	}})
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return errors.New("updated count != 1")
	}

	return nil
}

// FindAll finds all task paginated
func (s *MongoDBTaskRepository) FindAll(ctx context.Context, page int, pageSize int, filters []Filter) ([]Task, int, error) {
	t := []Task{}
	offset := page * pageSize

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"createdAt": -1})
	findOptions.SetSkip(int64(offset))
	findOptions.SetLimit(int64(pageSize))

	queryFilter := bson.D{}
	for _, filter := range filters {
		if filter.Operator != "" {
			queryFilter = append(queryFilter, bson.E{Key: filter.Field, Value: bson.M{filter.Operator: filter.Value}})
			continue
		}
		queryFilter = append(queryFilter, bson.E{Key: filter.Field, Value: filter.Value})
	}

	cursor, err := s.DB.Find(ctx, queryFilter, findOptions)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.DB.CountDocuments(ctx, queryFilter)
	if err != nil {
		return nil, 0, err
	}

	err = cursor.All(ctx, &t)
	if err != nil {
		return nil, 0, err
	}

	return t, int(count), nil
}

// FindByID finds a specific task by ID
func (s *MongoDBTaskRepository) FindByID(ctx context.Context, taskID primitive.ObjectID) (*Task, error) {
	t := Task{}

	result := s.DB.FindOne(ctx, bson.M{"_id": taskID})
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, ErrTaskNotFound
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	err := result.Decode(&t)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// FindUpdatableByID Finds a task of an owner and returns the TaskUpdate view of the model
func (s *MongoDBTaskRepository) FindUpdatableByID(ctx context.Context, taskID string, ownerID string) (*TaskUpdate, error) {
	taskObjectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.FindByID(ctx, taskObjectID)
	if err != nil {
		return nil, err
	}

	if task.OwnerID.Hex() != ownerID {
		return nil, ErrTaskNotFound
	}

	return (*TaskUpdate)(task), nil
}

// AssignWorker assigns a worker to an open task with a conditional update.
// It also reports true when the task already belongs to the worker, whatever its status moved on to.
func (s *MongoDBTaskRepository) AssignWorker(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error) {
	claimed, err := s.Claim(ctx, taskID, workerID)
	if err != nil || claimed {
		return claimed, err
	}

	count, err := s.DB.CountDocuments(ctx, bson.M{"_id": taskID, "assigneeId": workerID})
	if err != nil {
		return false, err
	}

	return count == 1, nil
}

// Claim assigns a worker only if the task is still open and unassigned
func (s *MongoDBTaskRepository) Claim(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (bool, error) {
	result, err := s.DB.UpdateOne(ctx, bson.M{
		"_id":        taskID,
		"status":     StatusOpen,
		"assigneeId": nil,
	}, bson.M{"$set": bson.M{
		"status":         StatusAssigned,
		"assigneeId":     workerID,
		"lastModifiedAt": time.Now(),
	}})
	if err != nil {
		return false, err
	}

	return result.MatchedCount == 1, nil
}

// EnsureIndexes creates the indexes the queries rely on
func (s *MongoDBTaskRepository) EnsureIndexes(ctx context.Context) error {
	_, err := s.DB.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "assigneeId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}
