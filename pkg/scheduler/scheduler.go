package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
)

var (
	// ErrSweepInProgress is returned when this instance is already sweeping
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrTooSoon is returned when the last sweep completed less than the minimum gap ago
	ErrTooSoon = errors.New("last sweep completed too recently")
	// ErrLockedElsewhere is returned when another instance holds the sweep lock
	ErrLockedElsewhere = errors.New("sweep is running on another instance")
	// ErrAlreadyStarted is returned by Start on a running scheduler
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Sweeper resolves expired application windows
type Sweeper interface {
	Sweep(ctx context.Context) (windows.SweepReport, error)
}

// Scheduler runs sweeps periodically and on demand
type Scheduler interface {
	Start(ctx context.Context) error
	// Stop stops scheduling and waits for a running sweep until ctx is done
	Stop(ctx context.Context) error
	// TriggerNow sweeps immediately, ignoring the minimum gap but not a running sweep
	TriggerNow(ctx context.Context) (*Run, error)
	Status() Status
}

// Run is one finished sweep
type Run struct {
	ID     string              `json:"id"`
	Report windows.SweepReport `json:"report"`
}

// Status describes the scheduler for diagnostics
type Status struct {
	IsRunning  bool                 `json:"isRunning"`
	LastRun    *time.Time           `json:"lastRun"`
	IntervalMs int64                `json:"intervalMs"`
	LastRunID  string               `json:"lastRunId,omitempty"`
	LastReport *windows.SweepReport `json:"lastReport,omitempty"`
	LastError  string               `json:"lastError,omitempty"`
}
