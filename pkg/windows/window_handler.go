package windows

import (
	"encoding/json"
	"net/http"

	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/tasks"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Handler handles the window and application routes of a task
type Handler struct {
	Engine          *Engine
	Registry        *Registry
	StatusReader    *StatusReader
	TaskRepository  tasks.TaskRepositoryInterface
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

type openWindowBody struct {
	ApplicationWindowMinutes int  `json:"applicationWindowMinutes" validate:"required"`
	MaxExtensions            *int `json:"maxExtensions" validate:"omitempty,min=0"`
}

// RespondWithDomainError maps the errors of the engine and the registry to their responses
func (handler *Handler) RespondWithDomainError(writer http.ResponseWriter, err error) {
	var policyErr *PolicyError
	switch {
	case errors.As(err, &policyErr):
		handler.ResponseManager.RespondWithReason(writer, http.StatusUnprocessableEntity,
			"Window can't be extended", string(policyErr.Reason), err)
	case errors.Is(err, ErrValidation):
		handler.ResponseManager.RespondWithReason(writer, http.StatusBadRequest, "Invalid request", "validation", err)
	case errors.Is(err, ErrDuplicate):
		handler.ResponseManager.RespondWithReason(writer, http.StatusConflict, "Already applied", "duplicate", err)
	case errors.Is(err, ErrWindowClosed):
		handler.ResponseManager.RespondWithReason(writer, http.StatusConflict, "Application window closed", "window_closed", err)
	case errors.Is(err, ErrConflict):
		handler.ResponseManager.RespondWithReason(writer, http.StatusConflict, "Conflicting window", "conflict", err)
	default:
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Something went wrong", err)
	}
}

func (handler *Handler) taskID(writer http.ResponseWriter, request *http.Request) (primitive.ObjectID, bool) {
	taskID, err := primitive.ObjectIDFromHex(mux.Vars(request)["taskID"])
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Malformed task id", err)
		return primitive.NilObjectID, false
	}

	return taskID, true
}

// ownedTaskID checks that the signed in user owns the task of the route
func (handler *Handler) ownedTaskID(writer http.ResponseWriter, request *http.Request) (primitive.ObjectID, bool) {
	taskID, ok := handler.taskID(writer, request)
	if !ok {
		return taskID, false
	}

	task, err := handler.TaskRepository.FindByID(request.Context(), taskID)
	if errors.Is(err, tasks.ErrTaskNotFound) || (err == nil && task.OwnerID.Hex() != auth.UserID(request.Context())) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find task", tasks.ErrTaskNotFound)
		return taskID, false
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load task", err)
		return taskID, false
	}

	return taskID, true
}

// OpenWindow opens an application window for a task of the signed in client
func (handler *Handler) OpenWindow(writer http.ResponseWriter, request *http.Request) {
	taskID, ok := handler.ownedTaskID(writer, request)
	if !ok {
		return
	}

	body := openWindowBody{}
	err := json.NewDecoder(request.Body).Decode(&body)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	v := validator.New()
	err = v.Struct(body)
	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, e.Error(), e)
			return
		}
	}

	maxExtensions := -1
	if body.MaxExtensions != nil {
		maxExtensions = *body.MaxExtensions
	}

	window, err := handler.Engine.OpenWindow(request.Context(), taskID, body.ApplicationWindowMinutes, maxExtensions)
	if err != nil {
		handler.RespondWithDomainError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, BuildView(window, now()), http.StatusCreated)
}

// GetWindow renders the latest window of a task
func (handler *Handler) GetWindow(writer http.ResponseWriter, request *http.Request) {
	taskID, ok := handler.taskID(writer, request)
	if !ok {
		return
	}

	view, err := handler.StatusReader.View(request.Context(), taskID)
	if errors.Is(err, ErrWindowNotFound) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Task has no application window", err)
		return
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load application window", err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}

// ExtendWindow extends the active window of a task of the signed in client
func (handler *Handler) ExtendWindow(writer http.ResponseWriter, request *http.Request) {
	taskID, ok := handler.ownedTaskID(writer, request)
	if !ok {
		return
	}

	window, err := handler.Engine.ExtendWindow(request.Context(), taskID)
	if err != nil {
		handler.RespondWithDomainError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, BuildView(window, now()))
}

// SubmitApplication applies the signed in worker for a task
func (handler *Handler) SubmitApplication(writer http.ResponseWriter, request *http.Request) {
	taskID, ok := handler.taskID(writer, request)
	if !ok {
		return
	}

	if auth.Role(request.Context()) != users.RoleWorker {
		handler.ResponseManager.RespondWithError(writer, http.StatusForbidden, "Only workers can apply", nil)
		return
	}

	workerID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	application, err := handler.Registry.SubmitApplication(request.Context(), taskID, workerID)
	if err != nil {
		handler.RespondWithDomainError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, application, http.StatusCreated)
}

// ListApplications lists the applications for a task of the signed in client
func (handler *Handler) ListApplications(writer http.ResponseWriter, request *http.Request) {
	taskID, ok := handler.ownedTaskID(writer, request)
	if !ok {
		return
	}

	applications, err := handler.Registry.ListApplications(request.Context(), taskID)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load applications", err)
		return
	}

	handler.ResponseManager.Respond(writer, map[string]interface{}{
		"results": applications,
	})
}
