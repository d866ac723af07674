package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/scheduler"
	"github.com/joelsaunders/bilbo/shared/middleware"
)

// SchedulerController is the control surface of the scheduler loop.
type SchedulerController interface {
	Start()
	Stop()
	Status() scheduler.Status
	RunOnce(ctx context.Context) scheduler.Summary
}

type SchedulerHandler struct {
	scheduler SchedulerController
}

func NewSchedulerHandler(s SchedulerController) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// RequireOperator only lets the listed users through. An empty list allows
// every authenticated user.
func RequireOperator(operatorIDs []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		allowed[id] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		userID, _ := middleware.GetUserID(c)
		if _, ok := allowed[userID]; !ok {
			middleware.RespondWithError(c, http.StatusForbidden, "Only operators can control the scheduler")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *SchedulerHandler) Start(c *gin.Context) {
	h.scheduler.Start()
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *SchedulerHandler) Stop(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *SchedulerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// RunNow performs one tick synchronously and returns its summary. A client
// disconnect does not cancel passes that are already moving money.
func (h *SchedulerHandler) RunNow(c *gin.Context) {
	summary := h.scheduler.RunOnce(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, summary)
}
