package main

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/shared/middleware"
)

// upstreams holds the base URL of every backing service.
type upstreams struct {
	auth      string
	user      string
	bill      string
	scheduler string
}

func main() {
	middleware.MustInitJWTSecret()

	router := newRouter(upstreams{
		auth:      getEnv("AUTH_SERVICE_URL", "http://localhost:8081"),
		user:      getEnv("USER_SERVICE_URL", "http://localhost:8082"),
		bill:      getEnv("BILL_SERVICE_URL", "http://localhost:8083"),
		scheduler: getEnv("SCHEDULER_SERVICE_URL", "http://localhost:8084"),
	}, &http.Client{Timeout: 30 * time.Second})

	port := getEnv("PORT", "8080")
	log.Printf("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newRouter(u upstreams, client *http.Client) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())
	auth := middleware.AuthMiddleware()

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "api-gateway"})
	})

	// Auth routes (no authentication required)
	router.POST("/v1/auth/login", proxyTo(client, u.auth))
	router.POST("/v1/auth/refresh", proxyTo(client, u.auth))

	// User routes
	router.POST("/v1/users", proxyTo(client, u.user)) // No auth for registration
	router.GET("/v1/users/me", auth, proxyTo(client, u.user))
	router.PATCH("/v1/users/me", auth, proxyTo(client, u.user))
	router.GET("/v1/users/me/monzo-login-url", auth, proxyTo(client, u.user))

	// Monzo routes live on the scheduler, which owns the bank client
	router.GET("/v1/users/monzo-login", proxyTo(client, u.scheduler)) // OAuth redirect, identified by state
	router.GET("/v1/users/me/accounts", auth, proxyTo(client, u.scheduler))
	router.GET("/v1/users/me/pots", auth, proxyTo(client, u.scheduler))
	router.POST("/v1/users/me/monzo-refresh", auth, proxyTo(client, u.scheduler))

	// Bill routes
	bills := router.Group("/v1/bills", auth)
	{
		bills.POST("", proxyTo(client, u.bill))
		bills.GET("", proxyTo(client, u.bill))
		bills.GET("/due-for-deposit", proxyTo(client, u.bill))
		bills.GET("/due-for-withdrawal", proxyTo(client, u.bill))
		bills.GET("/:billId", proxyTo(client, u.bill))
		bills.PATCH("/:billId", proxyTo(client, u.bill))
		bills.DELETE("/:billId", proxyTo(client, u.bill))
		bills.GET("/:billId/deposits", proxyTo(client, u.bill))
		bills.GET("/:billId/withdrawals", proxyTo(client, u.bill))
	}

	// Scheduler control
	sched := router.Group("/v1/scheduler", auth)
	{
		sched.POST("/start", proxyTo(client, u.scheduler))
		sched.POST("/stop", proxyTo(client, u.scheduler))
		sched.POST("/run", proxyTo(client, u.scheduler))
		sched.GET("/status", proxyTo(client, u.scheduler))
	}

	return router
}

func proxyTo(client *http.Client, serviceURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Build target URL
		targetURL := serviceURL + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			targetURL += "?" + c.Request.URL.RawQuery
		}

		// Read request body
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, bytes.NewReader(bodyBytes))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create request"})
			return
		}

		// Copy headers
		for key, values := range c.Request.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		// Forward user context from JWT middleware if authenticated
		if userID, exists := c.Get("userId"); exists {
			req.Header.Set("X-User-ID", userID.(string))
		}
		if email, exists := c.Get("email"); exists {
			req.Header.Set("X-User-Email", email.(string))
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("Error proxying request to %s: %v", serviceURL, err)
			c.JSON(http.StatusBadGateway, gin.H{"message": "Service unavailable"})
			return
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read response"})
			return
		}

		// Copy response headers
		for key, values := range resp.Header {
			if key == "Content-Length" || key == "Content-Type" {
				continue
			}
			for _, value := range values {
				c.Header(key, value)
			}
		}

		c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		// Remove trailing slash if present
		return strings.TrimSuffix(value, "/")
	}
	return fallback
}
