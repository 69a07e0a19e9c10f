package validators

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ops-task-service.com/ops-task-service/internal/constants"
	dto "ops-task-service.com/ops-task-service/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if strings.TrimSpace(r.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if strings.TrimSpace(r.Type) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type is required")
	}
	return nil
}

func ValidateFailTaskRequest(r *dto.FailTaskRequest) error {
	if strings.TrimSpace(r.ErrorMessage) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "error_message is required")
	}
	return nil
}

func ValidateTriggerRequest(r *dto.TriggerRequest) error {
	switch r.Action {
	case "create":
		if r.TaskData == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "task_data is required for create")
		}
		return ValidateCreateTaskRequest(r.TaskData)
	case "start", "complete":
	case "fail":
		if err := ValidateFailTaskRequest(&dto.FailTaskRequest{ErrorMessage: r.ErrorMessage}); err != nil {
			return err
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action: "+r.Action)
	}

	if r.TaskID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task_id is required")
	}
	return nil
}

func ValidateTrialConversionRequest(r *dto.TrialConversionRequest) error {
	if r.TrialID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trial_id is required")
	}
	if r.UserEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_email is required")
	}
	return nil
}

func ValidateStatusFilter(status string) error {
	if status != "" && !constants.TaskStatus(status).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status: "+status)
	}
	return nil
}
