package communication

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
)

func TestResponseManager_RespondWithReason(t *testing.T) {
	manager := ResponseManager{Logger: logger.Logger{Quiet: true}}
	recorder := httptest.NewRecorder()

	manager.RespondWithReason(recorder, http.StatusUnprocessableEntity, "Window can't be extended",
		"has_applications", errors.New("policy"))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", recorder.Code)
	}

	body := ErrorBody{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}

	if body.Error.Reason != "has_applications" || body.Err != "policy" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestResponseManager_HidesInternalErrors(t *testing.T) {
	manager := ResponseManager{Logger: logger.Logger{Quiet: true}}
	recorder := httptest.NewRecorder()

	manager.RespondWithError(recorder, http.StatusInternalServerError, "Database down", errors.New("connection refused"))

	body := ErrorBody{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}

	if body.Err != "" {
		t.Errorf("internal error leaked: %q", body.Err)
	}
}

func TestResponseManager_RespondWithStatus(t *testing.T) {
	manager := ResponseManager{Logger: logger.Logger{Quiet: true}}
	recorder := httptest.NewRecorder()

	manager.RespondWithStatus(recorder, map[string]string{"id": "1"}, http.StatusCreated)

	if recorder.Code != http.StatusCreated {
		t.Errorf("status = %d", recorder.Code)
	}

	if recorder.Body.String() != `{"id":"1"}` {
		t.Errorf("body = %s", recorder.Body.String())
	}
}
