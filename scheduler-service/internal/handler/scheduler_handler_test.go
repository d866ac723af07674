package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/scheduler"
)

// ---- mock implementations ----

type mockController struct {
	running bool
	runs    int
}

func (m *mockController) Start() { m.running = true }
func (m *mockController) Stop()  { m.running = false }
func (m *mockController) Status() scheduler.Status {
	if m.running {
		return scheduler.Status{State: scheduler.Running.String()}
	}
	return scheduler.Status{State: scheduler.Idle.String()}
}
func (m *mockController) RunOnce(_ context.Context) scheduler.Summary {
	m.runs++
	return scheduler.Summary{Users: 2, DepositsRecorded: 1}
}

// ---- helpers ----

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	}
}

func newSchedulerTestRouter(ctrl SchedulerController, operators []string, authUserID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(authUserID))
	h := NewSchedulerHandler(ctrl)
	v1 := r.Group("/v1/scheduler", RequireOperator(operators))
	v1.POST("/start", h.Start)
	v1.POST("/stop", h.Stop)
	v1.POST("/run", h.RunNow)
	v1.GET("/status", h.Status)
	return r
}

func doRequest(router *gin.Engine, method, url string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- tests ----

func TestSchedulerLifecycle(t *testing.T) {
	ctrl := &mockController{}
	router := newSchedulerTestRouter(ctrl, nil, "usr-001")

	steps := []struct {
		method, path string
		wantState    string
	}{
		{http.MethodGet, "/v1/scheduler/status", "idle"},
		{http.MethodPost, "/v1/scheduler/start", "running"},
		{http.MethodPost, "/v1/scheduler/start", "running"},
		{http.MethodPost, "/v1/scheduler/stop", "idle"},
		{http.MethodPost, "/v1/scheduler/stop", "idle"},
	}
	for _, step := range steps {
		w := doRequest(router, step.method, step.path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200, got %d", step.method, step.path, w.Code)
		}
		var status scheduler.Status
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.State != step.wantState {
			t.Errorf("%s %s: expected state %s, got %s", step.method, step.path, step.wantState, status.State)
		}
	}
}

func TestSchedulerRunNow(t *testing.T) {
	ctrl := &mockController{}
	router := newSchedulerTestRouter(ctrl, nil, "usr-001")

	w := doRequest(router, http.MethodPost, "/v1/scheduler/run")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var summary scheduler.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if ctrl.runs != 1 || summary.Users != 2 || summary.DepositsRecorded != 1 {
		t.Errorf("unexpected run result: runs=%d summary=%+v", ctrl.runs, summary)
	}
}

func TestRequireOperator(t *testing.T) {
	tests := []struct {
		name           string
		operators      []string
		userID         string
		expectedStatus int
	}{
		{name: "no operators configured", operators: nil, userID: "usr-001", expectedStatus: http.StatusOK},
		{name: "listed operator", operators: []string{"usr-ops", "usr-001"}, userID: "usr-001", expectedStatus: http.StatusOK},
		{name: "forbidden - not an operator", operators: []string{"usr-ops"}, userID: "usr-001", expectedStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{}
			router := newSchedulerTestRouter(ctrl, tt.operators, tt.userID)
			w := doRequest(router, http.MethodPost, "/v1/scheduler/start")
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusForbidden && ctrl.running {
				t.Errorf("[%s] scheduler started for a non-operator", tt.name)
			}
		})
	}
}
