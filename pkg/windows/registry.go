package windows

import (
	"context"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/notifications"
	"github.com/freelanceflow/freelanceflow-backend/pkg/tasks"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registry records worker applications against the active window of a task
type Registry struct {
	Windows      WindowRepositoryInterface
	Applications ApplicationRepositoryInterface
	Tasks        tasks.TaskRepositoryInterface
	Notifier     *AsyncNotifier
	Cache        WindowCacheInterface
	Logger       logger.Interface
}

// SubmitApplication stores the application of a worker.
// It fails with ErrWindowClosed without an active, unexpired window and with ErrDuplicate on a second application.
func (r *Registry) SubmitApplication(ctx context.Context, taskID primitive.ObjectID, workerID primitive.ObjectID) (*Application, error) {
	window, err := r.Windows.FindActiveByTaskID(ctx, taskID)
	if errors.Is(err, ErrWindowNotFound) {
		return nil, errors.Wrap(ErrWindowClosed, "task has no active application window")
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not look up active window")
	}

	appliedAt := now()
	if window.IsExpiredAt(appliedAt) {
		return nil, errors.Wrap(ErrWindowClosed, "application window expired")
	}

	task, err := r.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "could not load task")
	}
	if task.OwnerID == workerID {
		return nil, errors.Wrap(ErrValidation, "owners can't apply for their own task")
	}
	if !task.IsAssignable() {
		return nil, errors.Wrap(ErrWindowClosed, "task was already taken")
	}

	_, err = r.Applications.FindByTaskAndWorker(ctx, taskID, workerID)
	if err == nil {
		return nil, errors.Wrap(ErrDuplicate, "worker already applied for this task")
	}
	if !errors.Is(err, ErrApplicationNotFound) {
		return nil, errors.Wrap(err, "could not look up application")
	}

	application := Application{
		TaskID:    taskID,
		WindowID:  window.ID,
		WorkerID:  workerID,
		AppliedAt: appliedAt,
	}

	err = r.Applications.Add(ctx, &application)
	if errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not store application")
	}

	// the row only counts once the window admits it, a window resolved in between rejects it.
	// A failed admit whose increment did land is reconciled by the sweep.
	admitted, err := r.Windows.Admit(ctx, window.ID, appliedAt)
	if err != nil || !admitted {
		removeErr := r.Applications.Remove(ctx, application.ID)
		if removeErr != nil {
			r.Logger.Error("Could not roll back application "+application.ID.Hex(), removeErr)
		}

		if err != nil {
			return nil, errors.Wrap(err, "could not admit application")
		}
		return nil, errors.Wrap(ErrWindowClosed, "application window closed while applying")
	}

	if r.Cache != nil {
		err = r.Cache.Invalidate(ctx, taskID)
		if err != nil {
			r.Logger.Error("Could not invalidate cached window of task "+taskID.Hex(), err)
		}
	}

	r.Notifier.Send(task.OwnerID, "New application", "A worker applied for your task \""+task.Title+"\"",
		notifications.SeverityInfo)

	return &application, nil
}

// ListApplications lists the applications of a task ordered by appliedAt
func (r *Registry) ListApplications(ctx context.Context, taskID primitive.ObjectID) ([]*Application, error) {
	return r.Applications.FindByTaskID(ctx, taskID)
}
