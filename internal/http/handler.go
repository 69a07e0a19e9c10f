package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"ops-task-service.com/ops-task-service/internal/constants"
	dto "ops-task-service.com/ops-task-service/internal/data_models"
	apperrors "ops-task-service.com/ops-task-service/internal/errors"
	"ops-task-service.com/ops-task-service/internal/http/validators"
	model "ops-task-service.com/ops-task-service/internal/models"
	repository "ops-task-service.com/ops-task-service/internal/repositories"
	"ops-task-service.com/ops-task-service/internal/services"
)

const defaultListLimit = 10

type Handler struct {
	taskService *services.TaskService
	runner      *services.RunnerService
	events      *repository.EventLogRepository
	logger      logrus.FieldLogger
}

func NewHandler(
	taskService *services.TaskService,
	runner *services.RunnerService,
	events *repository.EventLogRepository,
	logger logrus.FieldLogger,
) *Handler {
	return &Handler{
		taskService: taskService,
		runner:      runner,
		events:      events,
		logger:      logger,
	}
}

func (h *Handler) CreateTask(c echo.Context) error {
	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req.Draft())
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.taskService.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ListTasks(c echo.Context) error {
	status := c.QueryParam("status")
	if err := validators.ValidateStatusFilter(status); err != nil {
		return err
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), model.TaskFilter{
		Status:      constants.TaskStatus(status),
		TriggeredBy: c.QueryParam("triggered_by"),
		Limit:       limit,
	})
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) ListPending(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListPending(c.Request().Context(), limit)
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) ApproveTask(c echo.Context) error {
	var req dto.ApproveTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	task, err := h.taskService.ApproveTask(c.Request().Context(), c.Param("id"), approved)
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) StartTask(c echo.Context) error {
	task, err := h.taskService.StartTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) RunTask(c echo.Context) error {
	task, err := h.runner.RunTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	var req dto.CompleteTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	task, err := h.taskService.CompleteTask(c.Request().Context(), c.Param("id"), req.Result)
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *Handler) FailTask(c echo.Context) error {
	var req dto.FailTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateFailTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.FailTask(c.Request().Context(), c.Param("id"), req.ErrorMessage)
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// Trigger serves the action-style endpoint. "start" also runs the executor.
func (h *Handler) Trigger(c echo.Context) error {
	var req dto.TriggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateTriggerRequest(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var (
		task *model.Task
		err  error
	)
	switch req.Action {
	case "create":
		draft := req.TaskData.Draft()
		if draft.TriggeredBy == "" {
			draft.TriggeredBy = constants.TriggeredByAPI
		}
		task, err = h.taskService.CreateTask(ctx, draft)
	case "start":
		task, err = h.runner.RunTask(ctx, req.TaskID)
	case "complete":
		task, err = h.taskService.CompleteTask(ctx, req.TaskID, req.Result)
	case "fail":
		task, err = h.taskService.FailTask(ctx, req.TaskID, req.ErrorMessage)
	}
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.TriggerResponse{
		Success: true,
		TaskID:  task.ID,
		Status:  string(task.Status),
		Task:    task,
	})
}

func (h *Handler) TrialConverted(c echo.Context) error {
	var req dto.TrialConversionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateTrialConversionRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), model.TaskDraft{
		Name:        "Setup infrastructure for " + req.UserEmail,
		Type:        "customer_onboarding",
		TriggeredBy: constants.TriggeredByTrialConversion,
		Config: map[string]any{
			"trial_id":    req.TrialID,
			"customer_id": req.CustomerID,
			"service_id":  req.ServiceID,
			"user_email":  req.UserEmail,
		},
	})
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusAccepted, task)
}

func (h *Handler) ListEvents(c echo.Context) error {
	severity := c.QueryParam("severity")
	if severity != "" && !constants.Severity(severity).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown severity: "+severity)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	entries, err := h.events.List(c.Request().Context(), model.EventLogFilter{
		AgentName: c.QueryParam("agent_name"),
		Severity:  constants.Severity(severity),
		Limit:     limit,
	})
	if err != nil {
		return h.toHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count":  len(entries),
		"events": entries,
	})
}

func (h *Handler) toHTTPError(err error) error {
	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.StatusCode, appErr.Message)
	}

	h.logger.WithError(err).Error("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func queryLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	return limit, nil
}
