package windows

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrValidation is returned for bad input like a too short window or a missing task
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when the task already has an active window
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is returned when a worker applies twice for the same task
	ErrDuplicate = errors.New("already applied")
	// ErrWindowClosed is returned when an application arrives without an active, unexpired window
	ErrWindowClosed = errors.New("application window closed")
	// ErrWindowNotFound is returned by repositories when no window matches
	ErrWindowNotFound = errors.New("application window not found")
)

// PolicyReason says why a manual extension was refused
type PolicyReason string

const (
	// ReasonWindowNotActive the window is completed, cancelled or missing
	ReasonWindowNotActive PolicyReason = "window_not_active"
	// ReasonHasApplications somebody already applied
	ReasonHasApplications PolicyReason = "has_applications"
	// ReasonExtensionsExhausted every allowed extension was used
	ReasonExtensionsExhausted PolicyReason = "extensions_exhausted"
)

// PolicyError is returned when an extension is requested although its preconditions are unmet
type PolicyError struct {
	Reason PolicyReason
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("window can't be extended: %s", e.Reason)
}

// Is lets errors.Is match any PolicyError against a PolicyError target without reason, or the same reason
func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	if !ok {
		return false
	}

	return t.Reason == "" || t.Reason == e.Reason
}
