package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/shared/middleware"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type echo struct {
	Service string `json:"service"`
	Path    string `json:"path"`
	Query   string `json:"query"`
	UserID  string `json:"userId"`
}

func upstream(t *testing.T, name string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(echo{
			Service: name,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			UserID:  r.Header.Get("X-User-ID"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestGatewayRouting(t *testing.T) {
	router := newRouter(upstreams{
		auth:      upstream(t, "auth"),
		user:      upstream(t, "user"),
		bill:      upstream(t, "bill"),
		scheduler: upstream(t, "scheduler"),
	}, &http.Client{Timeout: 5 * time.Second})

	token, err := middleware.GenerateToken("usr-001", "bilbo@example.com", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		name           string
		method         string
		path           string
		authenticated  bool
		expectedStatus int
		expectedTarget string
	}{
		{"login goes to auth", http.MethodPost, "/v1/auth/login", false, http.StatusOK, "auth"},
		{"registration needs no token", http.MethodPost, "/v1/users", false, http.StatusOK, "user"},
		{"profile goes to user service", http.MethodGet, "/v1/users/me", true, http.StatusOK, "user"},
		{"oauth redirect goes to scheduler", http.MethodGet, "/v1/users/monzo-login?state=s&code=c", false, http.StatusOK, "scheduler"},
		{"pots go to scheduler", http.MethodGet, "/v1/users/me/pots", true, http.StatusOK, "scheduler"},
		{"bills go to bill service", http.MethodGet, "/v1/bills/due-for-deposit", true, http.StatusOK, "bill"},
		{"ledger history goes to bill service", http.MethodGet, "/v1/bills/bil-1/withdrawals", true, http.StatusOK, "bill"},
		{"scheduler control", http.MethodPost, "/v1/scheduler/run", true, http.StatusOK, "scheduler"},
		{"unauthorized - bills without token", http.MethodGet, "/v1/bills", false, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.path, nil)
			if tt.authenticated {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedTarget == "" {
				return
			}
			var got echo
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("[%s] decode: %v", tt.name, err)
			}
			if got.Service != tt.expectedTarget {
				t.Errorf("[%s] routed to %s, want %s", tt.name, got.Service, tt.expectedTarget)
			}
			if tt.authenticated && got.UserID != "usr-001" {
				t.Errorf("[%s] X-User-ID not forwarded, got %q", tt.name, got.UserID)
			}
		})
	}
}

func TestGatewayUpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	router := newRouter(upstreams{auth: down.URL}, &http.Client{Timeout: time.Second})
	req, _ := http.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}
