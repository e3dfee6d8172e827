package windows

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NearExpirySeconds is the threshold below which a countdown is flagged as near expiry
const NearExpirySeconds = 300

// Countdown is the client side derived state of a window end
type Countdown struct {
	SecondsLeft  int64 `json:"secondsLeft"`
	IsExpired    bool  `json:"isExpired"`
	IsNearExpiry bool  `json:"isNearExpiry"`
}

// TimeRemaining computes the countdown to windowEnd as seen at now
func TimeRemaining(windowEnd time.Time, now time.Time) Countdown {
	seconds := int64(math.Floor(windowEnd.Sub(now).Seconds()))
	if seconds < 0 {
		seconds = 0
	}

	return Countdown{
		SecondsLeft:  seconds,
		IsExpired:    seconds <= 0,
		IsNearExpiry: seconds > 0 && seconds <= NearExpirySeconds,
	}
}

// CanExtend is the single predicate deciding whether a window may be extended by hand.
// The engine enforces it and the read path exposes it.
func CanExtend(window *ApplicationWindow, applicationCount int) bool {
	return window != nil &&
		window.Status == StatusActive &&
		window.ExtensionsCount < window.MaxExtensions &&
		applicationCount == 0
}

func extendRefusal(window *ApplicationWindow, applicationCount int) PolicyReason {
	switch {
	case window == nil || window.Status != StatusActive:
		return ReasonWindowNotActive
	case applicationCount > 0:
		return ReasonHasApplications
	case window.ExtensionsCount >= window.MaxExtensions:
		return ReasonExtensionsExhausted
	}
	return ""
}

// Phase is what a viewer should be told about a window
type Phase string

const (
	// PhaseActive accepts applications
	PhaseActive Phase = "active"
	// PhaseExpiredPending is past its end but not resolved by a sweep yet
	PhaseExpiredPending Phase = "expired_pending"
	// PhaseCompletedPending has a selected worker whose assignment isn't confirmed yet
	PhaseCompletedPending Phase = "completed_pending"
	// PhaseAssigned has a confirmed assignment
	PhaseAssigned Phase = "assigned"
	// PhaseSuperseded completed, but the task had been taken before the assignment was written
	PhaseSuperseded Phase = "superseded"
	// PhaseCancelled ended without applications
	PhaseCancelled Phase = "cancelled"
)

// PhaseOf derives the phase of a window at the given time
func PhaseOf(window *ApplicationWindow, now time.Time) Phase {
	switch window.Status {
	case StatusCancelled:
		return PhaseCancelled
	case StatusCompleted:
		if window.Resolution == nil || !window.Resolution.Finalized {
			return PhaseCompletedPending
		}
		if window.Resolution.Superseded {
			return PhaseSuperseded
		}
		return PhaseAssigned
	}

	if window.IsExpiredAt(now) {
		return PhaseExpiredPending
	}
	return PhaseActive
}

// View is the read model of a window served to pollers
type View struct {
	TaskID            primitive.ObjectID  `json:"taskId"`
	WindowID          primitive.ObjectID  `json:"windowId"`
	Phase             Phase               `json:"phase"`
	WindowStart       time.Time           `json:"windowStart"`
	WindowEnd         time.Time           `json:"windowEnd"`
	ExtensionsCount   int                 `json:"extensionsCount"`
	MaxExtensions     int                 `json:"maxExtensions"`
	ApplicationsCount int                 `json:"applicationsCount"`
	Countdown         Countdown           `json:"countdown"`
	CanExtend         bool                `json:"canExtend"`
	AssigneeID        *primitive.ObjectID `json:"assigneeId,omitempty"`
	ServerTime        time.Time           `json:"serverTime"`
}

// BuildView renders a window as seen at now
func BuildView(window *ApplicationWindow, now time.Time) *View {
	view := View{
		TaskID:            window.TaskID,
		WindowID:          window.ID,
		Phase:             PhaseOf(window, now),
		WindowStart:       window.WindowStart,
		WindowEnd:         window.WindowEnd,
		ExtensionsCount:   window.ExtensionsCount,
		MaxExtensions:     window.MaxExtensions,
		ApplicationsCount: window.ApplicationsCount,
		Countdown:         TimeRemaining(window.WindowEnd, now),
		CanExtend:         CanExtend(window, window.ApplicationsCount),
		ServerTime:        now,
	}

	// the assignee is only shown once the task write is confirmed
	if view.Phase == PhaseAssigned {
		workerID := window.Resolution.WorkerID
		view.AssigneeID = &workerID
	}

	return &view
}
