package scheduler

import (
	"net/http"

	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/pkg/errors"
)

// Handler exposes the operator routes of a Scheduler
type Handler struct {
	Scheduler       Scheduler
	ResponseManager *communication.ResponseManager
}

// Trigger runs a sweep now and responds with its report
func (handler *Handler) Trigger(writer http.ResponseWriter, request *http.Request) {
	run, err := handler.Scheduler.TriggerNow(request.Context())
	switch {
	case errors.Is(err, ErrSweepInProgress):
		handler.ResponseManager.RespondWithReason(writer, http.StatusConflict, "A sweep is already running", "sweep_in_progress", err)
		return
	case errors.Is(err, ErrLockedElsewhere):
		handler.ResponseManager.RespondWithReason(writer, http.StatusConflict, "A sweep is running on another instance", "locked", err)
		return
	case err != nil:
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Sweep failed", err)
		return
	}

	handler.ResponseManager.Respond(writer, run)
}

// GetStatus responds with the scheduler status
func (handler *Handler) GetStatus(writer http.ResponseWriter, request *http.Request) {
	handler.ResponseManager.Respond(writer, handler.Scheduler.Status())
}
