package windows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/notifications"
	"github.com/freelanceflow/freelanceflow-backend/pkg/tasks"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

var now = time.Now

const (
	// DefaultMaxExtensions is used when neither the task nor the config sets a ceiling
	DefaultMaxExtensions = 2
	// DefaultBatchSize bounds the windows handled per sweep phase
	DefaultBatchSize = 100
	// DefaultSweepConcurrency bounds the windows resolved in parallel
	DefaultSweepConcurrency = 8
	// AdmissionGrace is how long after expiry a sweep waits for in-flight applications
	// before it trusts the stored applications over the window's count
	AdmissionGrace = 2 * time.Minute

	extendAttempts = 3
)

// SweepReport counts what one sweep did
type SweepReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Expired    int       `json:"expired"`
	Extended   int       `json:"extended"`
	Cancelled  int       `json:"cancelled"`
	Completed  int       `json:"completed"`
	Finalized  int       `json:"finalized"`
	// Reconciled counts windows whose application count disagreed with the stored applications
	Reconciled int `json:"reconciled"`
	// Skipped counts windows another writer changed first
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeExtended
	outcomeCancelled
	outcomeCompleted
	outcomeFailed
)

func (r *SweepReport) count(o outcome) {
	switch o {
	case outcomeExtended:
		r.Extended++
	case outcomeCancelled:
		r.Cancelled++
	case outcomeCompleted:
		r.Completed++
	case outcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Engine owns the lifecycle of application windows and performs the auto assignment
type Engine struct {
	Windows      WindowRepositoryInterface
	Applications ApplicationRepositoryInterface
	Tasks        tasks.TaskRepositoryInterface
	Policy       SelectionPolicy
	Notifier     *AsyncNotifier
	// Cache is optional, every mutation invalidates the task's entry
	Cache  WindowCacheInterface
	Logger logger.Interface

	DefaultMaxExtensions int
	BatchSize            int
	Concurrency          int
}

// NewEngine initializes an Engine with default limits
func NewEngine(windows WindowRepositoryInterface, applications ApplicationRepositoryInterface,
	taskRepository tasks.TaskRepositoryInterface, policy SelectionPolicy, notifier *AsyncNotifier, log logger.Interface) *Engine {
	if policy == nil {
		policy = FirstApplied{}
	}

	return &Engine{
		Windows:              windows,
		Applications:         applications,
		Tasks:                taskRepository,
		Policy:               policy,
		Notifier:             notifier,
		Logger:               log,
		DefaultMaxExtensions: DefaultMaxExtensions,
		BatchSize:            DefaultBatchSize,
		Concurrency:          DefaultSweepConcurrency,
	}
}

func (e *Engine) invalidate(ctx context.Context, taskID primitive.ObjectID) {
	if e.Cache == nil {
		return
	}

	err := e.Cache.Invalidate(ctx, taskID)
	if err != nil {
		e.Logger.Error("Could not invalidate cached window of task "+taskID.Hex(), err)
	}
}

// OpenWindow opens an application window for an open task.
// A negative maxExtensions uses the configured default.
func (e *Engine) OpenWindow(ctx context.Context, taskID primitive.ObjectID, windowMinutes int, maxExtensions int) (*ApplicationWindow, error) {
	if windowMinutes < MinWindowMinutes {
		return nil, errors.Wrapf(ErrValidation, "window must be at least %d minutes", MinWindowMinutes)
	}

	if maxExtensions < 0 {
		maxExtensions = e.DefaultMaxExtensions
	}

	task, err := e.Tasks.FindByID(ctx, taskID)
	if errors.Is(err, tasks.ErrTaskNotFound) {
		return nil, errors.Wrap(ErrValidation, "task not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load task")
	}

	if !task.IsAssignable() {
		return nil, errors.Wrap(ErrValidation, "task is not open")
	}

	_, err = e.Windows.FindActiveByTaskID(ctx, taskID)
	if err == nil {
		return nil, errors.Wrap(ErrConflict, "task already has an active application window")
	}
	if !errors.Is(err, ErrWindowNotFound) {
		return nil, errors.Wrap(err, "could not look up active window")
	}

	start := now()
	window := ApplicationWindow{
		TaskID:                   taskID,
		ApplicationWindowMinutes: windowMinutes,
		WindowStart:              start,
		WindowEnd:                start.Add(time.Duration(windowMinutes) * time.Minute),
		MaxExtensions:            maxExtensions,
		Status:                   StatusActive,
	}

	err = e.Windows.Add(ctx, &window)
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, taskID)
	return &window, nil
}

// OpenWindowForTask opens a window with the task's own configuration
func (e *Engine) OpenWindowForTask(ctx context.Context, task *tasks.Task) error {
	maxExtensions := -1
	if task.MaxExtensions != nil {
		maxExtensions = *task.MaxExtensions
	}

	_, err := e.OpenWindow(ctx, task.ID, task.WindowMinutes(), maxExtensions)
	return err
}

// ExtendWindow extends the active window of a task by its original duration.
// It fails with a *PolicyError naming the unmet precondition.
func (e *Engine) ExtendWindow(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	for attempt := 0; attempt < extendAttempts; attempt++ {
		window, err := e.Windows.FindActiveByTaskID(ctx, taskID)
		if errors.Is(err, ErrWindowNotFound) {
			return nil, &PolicyError{Reason: ReasonWindowNotActive}
		}
		if err != nil {
			return nil, errors.Wrap(err, "could not look up active window")
		}

		if reason := extendRefusal(window, window.ApplicationsCount); reason != "" {
			return nil, &PolicyError{Reason: reason}
		}

		newEnd := now().Add(window.Duration())
		ok, err := e.Windows.Extend(ctx, window, newEnd, time.Time{})
		if err != nil {
			return nil, errors.Wrap(err, "could not extend window")
		}
		if !ok {
			// somebody applied or a sweep got there first, decide again on fresh state
			continue
		}

		window.WindowEnd = newEnd
		window.ExtensionsCount++
		e.invalidate(ctx, taskID)

		return window, nil
	}

	return nil, errors.Wrap(ErrConflict, "window kept changing while extending")
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultSweepConcurrency
	}
	return e.Concurrency
}

// Sweep finalizes completed windows whose assignment is not confirmed yet,
// then resolves every expired active window by completing, extending or cancelling it.
// A failing window is logged and retried by the next sweep.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{StartedAt: now()}

	unfinalized, err := e.Windows.FindUnfinalized(ctx, e.batchSize())
	if err != nil {
		return report, errors.Wrap(err, "could not find unfinalized windows")
	}

	for _, window := range unfinalized {
		finalized, err := e.finalize(ctx, window)
		if err != nil {
			e.Logger.Error(fmt.Sprintf("Could not finalize window %s", window.ID.Hex()), err)
			report.Failed++
			continue
		}
		if finalized {
			report.Finalized++
		}
	}

	at := now()
	expired, err := e.Windows.FindExpired(ctx, at, e.batchSize())
	if err != nil {
		return report, errors.Wrap(err, "could not find expired windows")
	}
	report.Expired = len(expired)

	var mutex sync.Mutex
	group := errgroup.Group{}
	group.SetLimit(e.concurrency())

	for _, window := range expired {
		window := window
		group.Go(func() error {
			reconciled := window.ApplicationsCount
			o, finalized, err := e.resolve(ctx, window, at)
			if err != nil {
				e.Logger.Error(fmt.Sprintf("Could not resolve window %s", window.ID.Hex()), err)
			}

			mutex.Lock()
			defer mutex.Unlock()
			report.count(o)
			if finalized {
				report.Finalized++
			}
			if reconciled != window.ApplicationsCount {
				report.Reconciled++
			}
			return nil
		})
	}

	_ = group.Wait()
	report.FinishedAt = now()

	return report, ctx.Err()
}

// resolve handles one expired window, the bool reports whether the completion was also finalized
func (e *Engine) resolve(ctx context.Context, window *ApplicationWindow, at time.Time) (outcome, bool, error) {
	if window.ApplicationsCount == 0 {
		return e.resolveEmpty(ctx, window, at)
	}

	applications, err := e.Applications.FindByWindowID(ctx, window.ID)
	if err != nil {
		return outcomeFailed, false, errors.Wrap(err, "could not load applications")
	}

	if len(applications) != window.ApplicationsCount {
		if at.Sub(window.WindowEnd) < AdmissionGrace {
			// applications are still being admitted or rolled back
			return outcomeSkipped, false, nil
		}

		if len(applications) == 0 {
			ok, err := e.Windows.Reconcile(ctx, window, 0, at)
			if err != nil {
				return outcomeFailed, false, errors.Wrap(err, "could not reconcile application count")
			}
			if !ok {
				return outcomeSkipped, false, nil
			}

			e.Logger.Info(fmt.Sprintf("Window %s counted %d applications without any stored, reset to 0",
				window.ID.Hex(), window.ApplicationsCount))
			window.ApplicationsCount = 0
			return e.resolveEmpty(ctx, window, at)
		}
	}

	selected, err := e.Policy.Select(ctx, applications)
	if err != nil {
		return outcomeFailed, false, errors.Wrap(err, "could not select application")
	}

	resolution := Resolution{
		ApplicationID: selected.ID,
		WorkerID:      selected.WorkerID,
		ResolvedAt:    at,
	}

	ok, err := e.Windows.Complete(ctx, window, resolution, at)
	if err != nil {
		return outcomeFailed, false, err
	}
	if !ok {
		return outcomeSkipped, false, nil
	}

	window.Status = StatusCompleted
	window.Resolution = &resolution
	e.invalidate(ctx, window.TaskID)

	finalized, err := e.finalize(ctx, window)
	if err != nil {
		return outcomeCompleted, false, errors.Wrap(err, "window completed, finalization is retried")
	}

	return outcomeCompleted, finalized, nil
}

// resolveEmpty extends or cancels an expired window nobody applied to.
// A window of a task that was claimed meanwhile is cancelled right away.
func (e *Engine) resolveEmpty(ctx context.Context, window *ApplicationWindow, at time.Time) (outcome, bool, error) {
	task, err := e.Tasks.FindByID(ctx, window.TaskID)
	if err != nil && !errors.Is(err, tasks.ErrTaskNotFound) {
		return outcomeFailed, false, errors.Wrap(err, "could not load task")
	}
	taken := err != nil || !task.IsAssignable()

	if !taken && window.ExtensionsCount < window.MaxExtensions {
		ok, err := e.Windows.Extend(ctx, window, at.Add(window.Duration()), at)
		if err != nil {
			return outcomeFailed, false, err
		}
		if !ok {
			return outcomeSkipped, false, nil
		}

		e.invalidate(ctx, window.TaskID)
		e.notifyOwner(ctx, window.TaskID, "Application window extended",
			fmt.Sprintf("Nobody applied yet, the window was extended by %d minutes", window.ApplicationWindowMinutes),
			notifications.SeverityInfo)
		return outcomeExtended, false, nil
	}

	ok, err := e.Windows.Cancel(ctx, window, at)
	if err != nil {
		return outcomeFailed, false, err
	}
	if !ok {
		return outcomeSkipped, false, nil
	}

	e.invalidate(ctx, window.TaskID)
	if taken {
		e.Logger.Info(fmt.Sprintf("Window %s closed, its task was taken without an application", window.ID.Hex()))
		return outcomeCancelled, false, nil
	}

	e.notifyOwner(ctx, window.TaskID, "No applications",
		"The application window closed without applications, the task stays open",
		notifications.SeverityWarning)
	return outcomeCancelled, false, nil
}

// finalize applies the resolution of a completed window. Every step is idempotent,
// only the call winning the finalize write notifies.
func (e *Engine) finalize(ctx context.Context, window *ApplicationWindow) (bool, error) {
	resolution := window.Resolution
	if resolution == nil {
		return false, errors.New("completed window without resolution")
	}

	assigned, err := e.Tasks.AssignWorker(ctx, window.TaskID, resolution.WorkerID)
	if err != nil {
		return false, errors.Wrap(err, "could not assign task")
	}

	if assigned {
		err = e.Applications.MarkSelected(ctx, resolution.ApplicationID)
		if err != nil {
			return false, errors.Wrap(err, "could not mark application as selected")
		}
	}

	won, err := e.Windows.Finalize(ctx, window.ID, !assigned)
	if err != nil {
		return false, errors.Wrap(err, "could not finalize window")
	}
	if !won {
		return false, nil
	}

	e.invalidate(ctx, window.TaskID)

	if !assigned {
		e.Logger.Info(fmt.Sprintf("Task %s was taken before window %s was finalized", window.TaskID.Hex(), window.ID.Hex()))
		return true, nil
	}

	e.Notifier.Send(resolution.WorkerID, "You got a task",
		"You were selected for a task you applied to", notifications.SeveritySuccess)
	e.notifyOwner(ctx, window.TaskID, "Task assigned",
		"A worker was selected for your task", notifications.SeverityInfo)

	return true, nil
}

// notifyOwner skips the owner lookup without a notifier, Send itself is nil safe
func (e *Engine) notifyOwner(ctx context.Context, taskID primitive.ObjectID, title string, message string, severity string) {
	if e.Notifier == nil {
		return
	}

	task, err := e.Tasks.FindByID(ctx, taskID)
	if err != nil {
		e.Logger.Error("Could not find task owner to notify", err)
		return
	}

	e.Notifier.Send(task.OwnerID, title, message, severity)
}
