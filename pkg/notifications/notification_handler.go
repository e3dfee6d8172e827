package notifications

import (
	"net/http"
	"strconv"

	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Handler handles the notification routes of the signed in user
type Handler struct {
	Repository      NotificationRepositoryInterface
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

// GetAllNotifications lists the notifications of the user
func (handler *Handler) GetAllNotifications(writer http.ResponseWriter, request *http.Request) {
	userID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	page, pageSize := 0, 25
	query := request.URL.Query()
	if value := query.Get("page"); value != "" {
		page, err = strconv.Atoi(value)
		if err != nil || page < 0 {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Bad page", err)
			return
		}
	}
	if value := query.Get("pageSize"); value != "" {
		pageSize, err = strconv.Atoi(value)
		if err != nil || pageSize < 1 || pageSize > 100 {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Bad page size", err)
			return
		}
	}

	unreadOnly := query.Get("unreadOnly") == "true"

	found, count, err := handler.Repository.FindAll(request.Context(), userID, unreadOnly, page, pageSize)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't load notifications", err)
		return
	}

	handler.ResponseManager.Respond(writer, map[string]interface{}{
		"results": found,
		"pagination": map[string]interface{}{
			"pageSize": pageSize,
			"results":  count,
		},
	})
}

// MarkRead marks one notification as read
func (handler *Handler) MarkRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	notificationID, err := primitive.ObjectIDFromHex(mux.Vars(request)["notificationID"])
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Malformed notification id", err)
		return
	}

	err = handler.Repository.MarkRead(request.Context(), notificationID, userID)
	if errors.Is(err, ErrNotificationNotFound) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find notification", err)
		return
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't update notification", err)
		return
	}

	handler.ResponseManager.RespondWithNoContent(writer)
}

// MarkAllRead marks every notification of the user as read
func (handler *Handler) MarkAllRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	changed, err := handler.Repository.MarkAllRead(request.Context(), userID)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't update notifications", err)
		return
	}

	handler.ResponseManager.Respond(writer, map[string]interface{}{
		"marked": changed,
	})
}

// DeleteNotification deletes one notification of the user
func (handler *Handler) DeleteNotification(writer http.ResponseWriter, request *http.Request) {
	userID, err := primitive.ObjectIDFromHex(auth.UserID(request.Context()))
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "UserID malformed", err)
		return
	}

	notificationID, err := primitive.ObjectIDFromHex(mux.Vars(request)["notificationID"])
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Malformed notification id", err)
		return
	}

	err = handler.Repository.Delete(request.Context(), notificationID, userID)
	if errors.Is(err, ErrNotificationNotFound) {
		handler.ResponseManager.RespondWithError(writer, http.StatusNotFound, "Couldn't find notification", err)
		return
	}
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusInternalServerError, "Couldn't delete notification", err)
		return
	}

	handler.ResponseManager.RespondWithNoContent(writer)
}
