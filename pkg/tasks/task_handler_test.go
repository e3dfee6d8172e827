package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingOpener struct {
	opened []primitive.ObjectID
	err    error
}

func (o *recordingOpener) OpenWindowForTask(_ context.Context, task *Task) error {
	o.opened = append(o.opened, task.ID)
	return o.err
}

func newTestHandler() (*Handler, *MockTaskRepository, *recordingOpener, *mux.Router) {
	repository := &MockTaskRepository{}
	opener := &recordingOpener{}
	handler := &Handler{
		TaskRepository:  repository,
		WindowOpener:    opener,
		Logger:          logger.Logger{Quiet: true},
		ResponseManager: &communication.ResponseManager{Logger: logger.Logger{Quiet: true}},
	}

	router := mux.NewRouter()
	router.HandleFunc("/tasks", handler.TaskAdd).Methods(http.MethodPost)
	router.HandleFunc("/tasks", handler.GetAllTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/my-tasks", handler.GetMyTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/claim", handler.ClaimTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}", handler.TaskGet).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}", handler.TaskUpdate).Methods(http.MethodPut)

	return handler, repository, opener, router
}

func as(request *http.Request, userID primitive.ObjectID, role string) *http.Request {
	ctx := context.WithValue(request.Context(), auth.KeyUserID, userID.Hex())
	ctx = context.WithValue(ctx, auth.KeyRole, role)
	return request.WithContext(ctx)
}

func TestHandler_TaskAdd(t *testing.T) {
	owner := primitive.NewObjectID()

	tests := []struct {
		name       string
		body       string
		openErr    error
		wantStatus int
		wantOpened int
	}{
		{"manual assignment", `{"title":"Logo","description":"Design a logo","payout":20}`, nil, http.StatusCreated, 0},
		{"auto assignment", `{"title":"Logo","description":"Design a logo","payout":20,"autoAssign":true}`, nil, http.StatusCreated, 1},
		{"missing title", `{"description":"Design a logo","payout":20}`, nil, http.StatusBadRequest, 0},
		{"window too short", `{"title":"Logo","description":"Design a logo","payout":20,"autoAssign":true,"applicationWindowMinutes":2}`, nil, http.StatusBadRequest, 0},
		{"window fails", `{"title":"Logo","description":"Design a logo","payout":20,"autoAssign":true}`, errors.New("mongo down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, opener, router := newTestHandler()
			opener.err = tt.openErr

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body)), owner, users.RoleClient))

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
			if len(opener.opened) != tt.wantOpened {
				t.Errorf("opened %d windows, want %d", len(opener.opened), tt.wantOpened)
			}

			if tt.wantStatus == http.StatusCreated {
				task := Task{}
				_ = json.Unmarshal(recorder.Body.Bytes(), &task)
				if task.OwnerID != owner || task.Status != StatusOpen {
					t.Errorf("unexpected task %+v", task)
				}
			}
		})
	}
}

func TestHandler_TaskUpdateOpensWindowOnceEnabled(t *testing.T) {
	_, repository, opener, router := newTestHandler()
	owner := primitive.NewObjectID()

	task := &Task{OwnerID: owner, Title: "Logo", Description: "Design a logo", Payout: 20}
	_ = repository.Add(context.Background(), task)
	path := "/tasks/" + task.ID.Hex()

	body := `{"title":"Logo","description":"Design a logo","payout":25,"autoAssign":true}`
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodPut, path, strings.NewReader(body)), owner, users.RoleClient))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodPut, path, strings.NewReader(body)), owner, users.RoleClient))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}

	if len(opener.opened) != 1 {
		t.Errorf("opened %d windows, want exactly one", len(opener.opened))
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodPut, path, strings.NewReader(body)), primitive.NewObjectID(), users.RoleClient))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("foreign update: status %d", recorder.Code)
	}
}

func TestHandler_GetAllTasks(t *testing.T) {
	_, repository, _, router := newTestHandler()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		_ = repository.Add(ctx, &Task{OwnerID: owner, Title: "Own", Description: "d", Payout: 1})
	}
	_ = repository.Add(ctx, &Task{OwnerID: primitive.NewObjectID(), Title: "Foreign", Description: "d", Payout: 1})
	taken := &Task{OwnerID: primitive.NewObjectID(), Title: "Taken", Description: "d", Payout: 1}
	_ = repository.Add(ctx, taken)
	_, _ = repository.AssignWorker(ctx, taken.ID, primitive.NewObjectID())

	tests := []struct {
		name  string
		user  primitive.ObjectID
		role  string
		query string
		want  int
	}{
		{"client sees own tasks", owner, users.RoleClient, "", 3},
		{"worker sees open tasks", primitive.NewObjectID(), users.RoleWorker, "", 4},
		{"paginated", owner, users.RoleClient, "?page=1&pageSize=2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodGet, "/tasks"+tt.query, nil), tt.user, tt.role))
			if recorder.Code != http.StatusOK {
				t.Fatalf("status %d", recorder.Code)
			}

			var body struct {
				Results []Task `json:"results"`
			}
			_ = json.Unmarshal(recorder.Body.Bytes(), &body)
			if len(body.Results) != tt.want {
				t.Errorf("got %d tasks, want %d", len(body.Results), tt.want)
			}
		})
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodGet, "/tasks?pageSize=0", nil), owner, users.RoleClient))
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad page size: status %d", recorder.Code)
	}
}

func TestHandler_ClaimTask(t *testing.T) {
	_, repository, _, router := newTestHandler()
	ctx := context.Background()

	task := &Task{OwnerID: primitive.NewObjectID(), Title: "Logo", Description: "Design a logo", Payout: 20}
	_ = repository.Add(ctx, task)
	path := "/tasks/" + task.ID.Hex() + "/claim"
	worker := primitive.NewObjectID()

	tests := []struct {
		name       string
		path       string
		user       primitive.ObjectID
		role       string
		wantStatus int
	}{
		{"client can't claim", path, task.OwnerID, users.RoleClient, http.StatusForbidden},
		{"missing task", "/tasks/" + primitive.NewObjectID().Hex() + "/claim", worker, users.RoleWorker, http.StatusNotFound},
		{"claims", path, worker, users.RoleWorker, http.StatusOK},
		{"same worker again", path, worker, users.RoleWorker, http.StatusBadRequest},
		{"other worker", path, primitive.NewObjectID(), users.RoleWorker, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodPost, tt.path, nil), tt.user, tt.role))
			if recorder.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
		})
	}

	claimed, _ := repository.FindByID(ctx, task.ID)
	if claimed.Status != StatusAssigned || *claimed.AssigneeID != worker {
		t.Errorf("unexpected task %+v", claimed)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodGet, "/tasks/my-tasks", nil), worker, users.RoleWorker))
	if recorder.Code != http.StatusOK {
		t.Fatalf("my tasks: status %d", recorder.Code)
	}

	var body struct {
		Results []Task `json:"results"`
	}
	_ = json.Unmarshal(recorder.Body.Bytes(), &body)
	if len(body.Results) != 1 || body.Results[0].ID != task.ID {
		t.Errorf("unexpected tasks of the worker %+v", body.Results)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, as(httptest.NewRequest(http.MethodGet, "/tasks/my-tasks", nil), task.OwnerID, users.RoleClient))
	if recorder.Code != http.StatusForbidden {
		t.Errorf("my tasks as client: status %d", recorder.Code)
	}
}
