package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/locking"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

var now = time.Now

const (
	// LockKey is the distributed lock every instance takes before sweeping
	LockKey = "windows-sweep"

	defaultInterval = 60 * time.Second
	defaultMinGap   = 30 * time.Second
	defaultLockTTL  = 5 * time.Minute
)

// CronScheduler sweeps on a fixed interval, guarded locally and across instances
type CronScheduler struct {
	Sweeper Sweeper
	Locker  locking.LockerInterface
	Logger  logger.Interface

	Interval time.Duration
	MinGap   time.Duration
	LockTTL  time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mutex      sync.Mutex
	isRunning  bool
	lastRun    time.Time
	lastRunID  string
	lastReport *windows.SweepReport
	lastError  string
}

// NewCronScheduler initializes a new CronScheduler
func NewCronScheduler(sweeper Sweeper, locker locking.LockerInterface, log logger.Interface, interval time.Duration, minGap time.Duration) *CronScheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if minGap < 0 {
		minGap = defaultMinGap
	}

	return &CronScheduler{
		Sweeper:  sweeper,
		Locker:   locker,
		Logger:   log,
		Interval: interval,
		MinGap:   minGap,
		LockTTL:  defaultLockTTL,
	}
}

// cronLogger adapts logger.Interface to cron.Logger
type cronLogger struct {
	logger logger.Interface
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprint("cron: ", msg, " ", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprint("cron: ", msg, " ", keysAndValues), err)
}

// Start schedules the sweep every Interval until Stop or until ctx is cancelled
func (s *CronScheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger: s.Logger})))

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() {
		_, err := s.run(s.ctx, false)
		if err != nil && !errors.Is(err, ErrTooSoon) && !errors.Is(err, ErrSweepInProgress) && !errors.Is(err, ErrLockedElsewhere) {
			s.Logger.Error("Scheduled sweep failed", err)
		}
	})
	if err != nil {
		s.cancel()
		s.cron = nil
		return errors.Wrap(err, "could not schedule sweep")
	}

	s.cron.Start()
	s.Logger.Info(fmt.Sprintf("Sweep scheduled every %s", s.Interval))
	return nil
}

// Stop stops the schedule, a running sweep is cancelled once ctx is done
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mutex.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mutex.Unlock()

	if c == nil {
		return nil
	}
	defer cancel()

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow sweeps right away, concurrent calls share one sweep
func (s *CronScheduler) TriggerNow(ctx context.Context) (*Run, error) {
	result, err, _ := s.group.Do(LockKey, func() (interface{}, error) {
		return s.run(ctx, true)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Run), nil
}

// Status returns the current state
func (s *CronScheduler) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status := Status{
		IsRunning:  s.isRunning,
		IntervalMs: s.Interval.Milliseconds(),
		LastRunID:  s.lastRunID,
		LastError:  s.lastError,
	}

	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	if s.lastReport != nil {
		report := *s.lastReport
		status.LastReport = &report
	}

	return status
}

func (s *CronScheduler) run(ctx context.Context, manual bool) (*Run, error) {
	s.mutex.Lock()
	if s.isRunning {
		s.mutex.Unlock()
		return nil, ErrSweepInProgress
	}
	if !manual && !s.lastRun.IsZero() && now().Sub(s.lastRun) < s.MinGap {
		s.mutex.Unlock()
		return nil, ErrTooSoon
	}
	s.isRunning = true
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		s.isRunning = false
		s.mutex.Unlock()
	}()

	lockTTL := s.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	lock, err := s.Locker.Acquire(ctx, LockKey, lockTTL, true)
	if errors.Is(err, locking.ErrNotObtained) {
		return nil, ErrLockedElsewhere
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not acquire sweep lock")
	}
	defer func() {
		err := lock.Release(context.Background())
		if err != nil {
			s.Logger.Error("Could not release sweep lock", err)
		}
	}()

	runID := uuid.NewString()
	s.Logger.Debug(fmt.Sprintf("Sweep %s started", runID))

	report, sweepErr := s.Sweeper.Sweep(ctx)

	s.mutex.Lock()
	s.lastRun = now()
	s.lastRunID = runID
	s.lastReport = &report
	s.lastError = ""
	if sweepErr != nil {
		s.lastError = sweepErr.Error()
	}
	s.mutex.Unlock()

	if sweepErr != nil {
		return nil, errors.Wrapf(sweepErr, "sweep %s failed", runID)
	}

	s.Logger.Info(fmt.Sprintf("Sweep %s finished: %d completed, %d extended, %d cancelled, %d finalized, %d skipped, %d failed, %d reconciled",
		runID, report.Completed, report.Extended, report.Cancelled, report.Finalized, report.Skipped, report.Failed, report.Reconciled))

	return &Run{ID: runID, Report: report}, nil
}
