package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "ops-task-service.com/ops-task-service/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/tasks", h.CreateTask)
	e.GET("/tasks", h.ListTasks)
	e.GET("/tasks/pending", h.ListPending)
	e.GET("/tasks/:id", h.GetTask)
	e.POST("/tasks/:id/approve", h.ApproveTask)
	e.POST("/tasks/:id/start", h.StartTask)
	e.POST("/tasks/:id/run", h.RunTask)
	e.POST("/tasks/:id/complete", h.CompleteTask)
	e.POST("/tasks/:id/fail", h.FailTask)

	e.POST("/ops/trigger", h.Trigger)
	e.POST("/hooks/trial-conversions", h.TrialConverted)

	e.GET("/events", h.ListEvents)
}
