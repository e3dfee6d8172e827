package windows

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/tasks"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestRouter(f *fixture) *mux.Router {
	handler := Handler{
		Engine:          f.engine,
		Registry:        f.registry,
		StatusReader:    &StatusReader{Windows: f.windows, Logger: logger.Logger{Quiet: true}},
		TaskRepository:  f.tasks,
		Logger:          logger.Logger{Quiet: true},
		ResponseManager: &communication.ResponseManager{Logger: logger.Logger{Quiet: true}},
	}

	router := mux.NewRouter()
	router.HandleFunc("/tasks/{taskID}/window", handler.OpenWindow).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/window", handler.GetWindow).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/window/extend", handler.ExtendWindow).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/applications", handler.SubmitApplication).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/applications", handler.ListApplications).Methods(http.MethodGet)
	return router
}

func as(request *http.Request, userID primitive.ObjectID, role string) *http.Request {
	ctx := context.WithValue(request.Context(), auth.KeyUserID, userID.Hex())
	ctx = context.WithValue(ctx, auth.KeyRole, role)
	return request.WithContext(ctx)
}

func serve(router *mux.Router, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func errorReason(t *testing.T, recorder *httptest.ResponseRecorder) string {
	body := communication.ErrorBody{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	return body.Error.Reason
}

func TestHandler_WindowLifecycle(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	task := f.addTask(t)
	path := "/tasks/" + task.ID.Hex()

	recorder := serve(router, as(httptest.NewRequest(http.MethodGet, path+"/window", nil), f.owner, users.RoleClient))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("window before opening: status %d", recorder.Code)
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/window",
		strings.NewReader(`{"applicationWindowMinutes": 3}`)), f.owner, users.RoleClient))
	if recorder.Code != http.StatusBadRequest || errorReason(t, recorder) != "validation" {
		t.Fatalf("too short window: status %d body %s", recorder.Code, recorder.Body.String())
	}

	stranger := primitive.NewObjectID()
	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/window",
		strings.NewReader(`{"applicationWindowMinutes": 30}`)), stranger, users.RoleClient))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("foreign task: status %d", recorder.Code)
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/window",
		strings.NewReader(`{"applicationWindowMinutes": 30, "maxExtensions": 1}`)), f.owner, users.RoleClient))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("open: status %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/window",
		strings.NewReader(`{"applicationWindowMinutes": 30}`)), f.owner, users.RoleClient))
	if recorder.Code != http.StatusConflict || errorReason(t, recorder) != "conflict" {
		t.Fatalf("second open: status %d", recorder.Code)
	}

	f.advance(time.Minute)
	recorder = serve(router, as(httptest.NewRequest(http.MethodGet, path+"/window", nil), stranger, users.RoleWorker))
	if recorder.Code != http.StatusOK {
		t.Fatalf("get window: status %d", recorder.Code)
	}

	view := View{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Phase != PhaseActive || view.Countdown.SecondsLeft != 29*60 || !view.CanExtend {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestHandler_Applications(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	task, _ := f.open(t, 30, 1)
	path := "/tasks/" + task.ID.Hex()
	worker := primitive.NewObjectID()

	recorder := serve(router, as(httptest.NewRequest(http.MethodPost, path+"/applications", nil), primitive.NewObjectID(), users.RoleClient))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("client applying: status %d", recorder.Code)
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/applications", nil), worker, users.RoleWorker))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("apply: status %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/applications", nil), worker, users.RoleWorker))
	if recorder.Code != http.StatusConflict || errorReason(t, recorder) != "duplicate" {
		t.Fatalf("duplicate: status %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/window/extend", nil), f.owner, users.RoleClient))
	if recorder.Code != http.StatusUnprocessableEntity || errorReason(t, recorder) != string(ReasonHasApplications) {
		t.Fatalf("extend with applications: status %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodGet, path+"/applications", nil), f.owner, users.RoleClient))
	if recorder.Code != http.StatusOK {
		t.Fatalf("list: status %d", recorder.Code)
	}

	var body struct {
		Results []Application `json:"results"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 1 || body.Results[0].WorkerID != worker {
		t.Errorf("unexpected applications %+v", body.Results)
	}

	f.advance(31 * time.Minute)
	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path+"/applications", nil), primitive.NewObjectID(), users.RoleWorker))
	if recorder.Code != http.StatusConflict || errorReason(t, recorder) != "window_closed" {
		t.Fatalf("late application: status %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestHandler_ExtendWindow(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	task, _ := f.open(t, 30, 1)
	path := "/tasks/" + task.ID.Hex() + "/window/extend"

	recorder := serve(router, as(httptest.NewRequest(http.MethodPost, path, nil), f.owner, users.RoleClient))
	if recorder.Code != http.StatusOK {
		t.Fatalf("extend: status %d body %s", recorder.Code, recorder.Body.String())
	}

	view := View{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.ExtensionsCount != 1 || view.CanExtend {
		t.Errorf("unexpected view %+v", view)
	}

	recorder = serve(router, as(httptest.NewRequest(http.MethodPost, path, nil), f.owner, users.RoleClient))
	if recorder.Code != http.StatusUnprocessableEntity || errorReason(t, recorder) != string(ReasonExtensionsExhausted) {
		t.Fatalf("exhausted: status %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestHandler_TaskRoutesMapWindowErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	responseManager := &communication.ResponseManager{Logger: logger.Logger{Quiet: true}}

	taskHandler := tasks.Handler{
		TaskRepository:  f.tasks,
		WindowOpener:    f.engine,
		WindowErrors:    &Handler{ResponseManager: responseManager},
		Logger:          logger.Logger{Quiet: true},
		ResponseManager: responseManager,
	}
	router := mux.NewRouter()
	router.HandleFunc("/tasks/{taskID}", taskHandler.TaskUpdate).Methods(http.MethodPut)

	manual := &tasks.Task{OwnerID: f.owner, Title: "Logo", Description: "Design a logo", Payout: 50}
	if err := f.tasks.Add(ctx, manual); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.OpenWindow(ctx, manual.ID, 30, 1); err != nil {
		t.Fatal(err)
	}

	body := `{"title":"Logo","description":"Design a logo","payout":50,"autoAssign":true}`
	recorder := serve(router, as(httptest.NewRequest(http.MethodPut, "/tasks/"+manual.ID.Hex(),
		strings.NewReader(body)), f.owner, users.RoleClient))
	if recorder.Code != http.StatusConflict || errorReason(t, recorder) != "conflict" {
		t.Fatalf("second window: status %d body %s", recorder.Code, recorder.Body.String())
	}
}
