package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func newAuthTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := GenerateToken("usr-001", "bilbo@example.com", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	expired, err := GenerateToken("usr-001", "bilbo@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "success - valid bearer token", header: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "unauthorized - missing header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "unauthorized - wrong scheme", header: "Basic " + valid, expectedStatus: http.StatusUnauthorized},
		{name: "unauthorized - expired token", header: "Bearer " + expired, expectedStatus: http.StatusUnauthorized},
		{name: "unauthorized - garbage token", header: "Bearer not-a-jwt", expectedStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newAuthTestRouter().ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestParseTokenClaims(t *testing.T) {
	token, err := GenerateToken("usr-042", "frodo@example.com", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "usr-042" || claims.Email != "frodo@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}
