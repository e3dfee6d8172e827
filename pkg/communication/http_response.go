package communication

import (
	"encoding/json"
	"net/http"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
)

// ResponseManager writes JSON responses and errors back to the caller
type ResponseManager struct {
	Logger logger.Interface
}

// ErrorBody is the shape of every error response
type ErrorBody struct {
	Status int         `json:"status"`
	Error  ErrorDetail `json:"error"`
	Err    string      `json:"err,omitempty"`
}

// ErrorDetail explains an error, Reason is a stable code clients can switch on
type ErrorDetail struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// RespondWithError takes several arguments to return an error to the user and logs the error as well
func (r *ResponseManager) RespondWithError(writer http.ResponseWriter, status int, message string, err error) {
	r.RespondWithReason(writer, status, message, "", err)
}

// RespondWithReason is RespondWithError with a machine readable reason code
func (r *ResponseManager) RespondWithReason(writer http.ResponseWriter, status int, message string, reason string, err error) {
	if status >= 500 {
		r.Logger.Error(message, err)
	}

	response := ErrorBody{
		Status: status,
		Error: ErrorDetail{
			Message: message,
			Reason:  reason,
		},
	}

	// internal details stay in the logs
	if err != nil && status < 500 {
		response.Err = err.Error()
	}

	binary, err := json.Marshal(response)
	if err != nil {
		r.Logger.Error("Problem while marshalling error response", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	writer.WriteHeader(status)
	_, err = writer.Write(binary)
	if err != nil {
		r.Logger.Error("Problem writing error response", err)
	}
}

// Respond takes an object and turns it into json and responds with it and a 200 HTTP status
func (r *ResponseManager) Respond(writer http.ResponseWriter, i interface{}) {
	r.RespondWithStatus(writer, i, http.StatusOK)
}

// RespondWithStatus responds with a specific status code
func (r *ResponseManager) RespondWithStatus(writer http.ResponseWriter, i interface{}, status int) {
	binary, err := json.Marshal(i)
	if err != nil {
		r.RespondWithError(writer, http.StatusInternalServerError,
			"Problem while marshalling response into json", err)
		return
	}

	writer.WriteHeader(status)
	_, err = writer.Write(binary)
	if err != nil {
		r.Logger.Error("Problem writing response", err)
	}
}

// RespondWithNoContent sends a no content status code
func (r *ResponseManager) RespondWithNoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}
