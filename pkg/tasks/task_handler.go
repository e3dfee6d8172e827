package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WindowOpener opens the application window of an auto assigned task
type WindowOpener interface {
	OpenWindowForTask(ctx context.Context, task *Task) error
}

// WindowErrorResponder writes the response for an error returned by a WindowOpener
type WindowErrorResponder interface {
	RespondWithDomainError(writer http.ResponseWriter, err error)
}

// Handler handles all task related API calls
type Handler struct {
	TaskRepository  TaskRepositoryInterface
	WindowOpener    WindowOpener
	WindowErrors    WindowErrorResponder
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

func (handler *Handler) respondWithWindowError(writer http.ResponseWriter, message string, err error) {
	if handler.WindowErrors == nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, message, err)
		return
	}

	handler.WindowErrors.RespondWithDomainError(writer, errors.Wrap(err, message))
}

// TaskAdd is the route for adding a task
func (handler *Handler) TaskAdd(writer http.ResponseWriter, request *http.Request) {
	task := Task{}

	err := json.NewDecoder(request.Body).Decode(&task)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	ownerID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized,
			"UserID malformed", err)
		return
	}

	task.OwnerID = ownerID
	task.Status = StatusOpen
	task.AssigneeID = nil

	v := validator.New()
	err = v.Struct(task)
	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, e.Error(), e)
			return
		}
	}

	err = handler.TaskRepository.Add(request.Context(), &task)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError,
			"Persisting task in database did not work", err)
		return
	}

	if task.AutoAssign {
		err = handler.WindowOpener.OpenWindowForTask(request.Context(), &task)
		if err != nil {
			handler.respondWithWindowError(writer, "Task was created but its application window could not be opened", err)
			return
		}
	}

	handler.ResponseManager.RespondWithStatus(writer, &task, http.StatusCreated)
}

// TaskGet is the route for getting a single task
func (handler *Handler) TaskGet(writer http.ResponseWriter, request *http.Request) {
	taskID, err := primitive.ObjectIDFromHex(mux.Vars(request)["taskID"])
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Malformed task id", err)
		return
	}

	task, err := handler.TaskRepository.FindByID(request.Context(), taskID)
	if errors.Is(err, ErrTaskNotFound) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find task", err)
		return
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load task", err)
		return
	}

	handler.ResponseManager.Respond(writer, task)
}

// GetAllTasks lists tasks, workers browse the open ones and clients see their own
func (handler *Handler) GetAllTasks(writer http.ResponseWriter, request *http.Request) {
	page, pageSize, err := pagination(request)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Bad pagination", err)
		return
	}

	var filters []Filter
	if auth.Role(request.Context()) == users.RoleClient {
		ownerID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
		if err != nil {
			handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
			return
		}
		filters = append(filters, Filter{Field: "ownerId", Value: ownerID})
	} else {
		filters = append(filters, Filter{Field: "status", Value: StatusOpen})
	}

	if status := request.URL.Query().Get("status"); status != "" && auth.Role(request.Context()) == users.RoleClient {
		filters = append(filters, Filter{Field: "status", Value: status})
	}

	tasks, count, err := handler.TaskRepository.FindAll(request.Context(), page, pageSize, filters)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load tasks", err)
		return
	}

	handler.ResponseManager.Respond(writer, map[string]interface{}{
		"results": tasks,
		"pagination": map[string]interface{}{
			"pageSize": pageSize,
			"results":  count,
		},
	})
}

// TaskUpdate is the route for updating a Task, switching autoAssign on opens a window
func (handler *Handler) TaskUpdate(writer http.ResponseWriter, request *http.Request) {
	userID := auth.UserID(request.Context())
	taskID := mux.Vars(request)["taskID"]

	task, err := handler.TaskRepository.FindUpdatableByID(request.Context(), taskID, userID)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find task", err)
		return
	}
	original := *task

	err = json.NewDecoder(request.Body).Decode(task)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	v := validator.New()
	err = v.Struct(task)
	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, e.Error(), e)
			return
		}
	}

	err = handler.TaskRepository.Update(request.Context(), task)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Could not persist task", err)
		return
	}

	if !original.AutoAssign && task.AutoAssign && task.Status == StatusOpen {
		err = handler.WindowOpener.OpenWindowForTask(request.Context(), (*Task)(task))
		if err != nil {
			handler.respondWithWindowError(writer, "Task was updated but its application window could not be opened", err)
			return
		}
	}

	handler.ResponseManager.Respond(writer, (*Task)(task))
}

func pagination(request *http.Request) (int, int, error) {
	page := 0
	pageSize := 25

	var err error
	if value := request.URL.Query().Get("page"); value != "" {
		page, err = strconv.Atoi(value)
		if err != nil || page < 0 {
			return 0, 0, errors.New("page must be a non negative integer")
		}
	}

	if value := request.URL.Query().Get("pageSize"); value != "" {
		pageSize, err = strconv.Atoi(value)
		if err != nil || pageSize < 1 || pageSize > 100 {
			return 0, 0, errors.New("pageSize must be between 1 and 100")
		}
	}

	return page, pageSize, nil
}

// ClaimTask assigns an open task to the signed in worker right away
func (handler *Handler) ClaimTask(writer http.ResponseWriter, request *http.Request) {
	if auth.Role(request.Context()) != users.RoleWorker {
		handler.ResponseManager.RespondWithError(writer, http.StatusForbidden, "Only workers can claim tasks", nil)
		return
	}

	workerID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	taskID, err := primitive.ObjectIDFromHex(mux.Vars(request)["taskID"])
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Malformed task id", err)
		return
	}

	claimed, err := handler.TaskRepository.Claim(request.Context(), taskID, workerID)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't claim task", err)
		return
	}

	task, err := handler.TaskRepository.FindByID(request.Context(), taskID)
	if errors.Is(err, ErrTaskNotFound) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find task", err)
		return
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load task", err)
		return
	}

	if !claimed {
		handler.ResponseManager.RespondWithReason(writer, http.StatusBadRequest,
			"Task is not available for claiming", "not_claimable", nil)
		return
	}

	handler.ResponseManager.Respond(writer, task)
}

// GetMyTasks lists the tasks assigned to the signed in worker
func (handler *Handler) GetMyTasks(writer http.ResponseWriter, request *http.Request) {
	if auth.Role(request.Context()) != users.RoleWorker {
		handler.ResponseManager.RespondWithError(writer, http.StatusForbidden, "Only workers can view assigned tasks", nil)
		return
	}

	workerID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	page, pageSize, err := pagination(request)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Bad pagination", err)
		return
	}

	tasks, count, err := handler.TaskRepository.FindAll(request.Context(), page, pageSize,
		[]Filter{{Field: "assigneeId", Value: workerID}})
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load tasks", err)
		return
	}

	handler.ResponseManager.Respond(writer, map[string]interface{}{
		"results": tasks,
		"pagination": map[string]interface{}{
			"pageSize": pageSize,
			"results":  count,
		},
	})
}
