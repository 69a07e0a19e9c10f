package dto

import model "ops-task-service.com/ops-task-service/internal/models"

type CreateTaskRequest struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Config      map[string]any `json:"config"`
	Priority    *int           `json:"priority"`
	TriggeredBy string         `json:"triggered_by"`
	Approved    bool           `json:"approved"`
}

func (r CreateTaskRequest) Draft() model.TaskDraft {
	return model.TaskDraft{
		Name:        r.Name,
		Type:        r.Type,
		Config:      r.Config,
		Priority:    r.Priority,
		TriggeredBy: r.TriggeredBy,
		Approved:    r.Approved,
	}
}

type ApproveTaskRequest struct {
	Approved *bool `json:"approved"`
}

type CompleteTaskRequest struct {
	Result map[string]any `json:"result"`
}

type FailTaskRequest struct {
	ErrorMessage string `json:"error_message"`
}

// TriggerRequest is the single-endpoint action form used by agents:
// one of create, start, complete, fail.
type TriggerRequest struct {
	Action       string             `json:"action"`
	TaskID       string             `json:"task_id"`
	Result       map[string]any     `json:"result"`
	ErrorMessage string             `json:"error_message"`
	TaskData     *CreateTaskRequest `json:"task_data"`
}

type TriggerResponse struct {
	Success bool        `json:"success"`
	TaskID  string      `json:"task_id"`
	Status  string      `json:"status"`
	Task    *model.Task `json:"task,omitempty"`
}

type TrialConversionRequest struct {
	TrialID    string `json:"trial_id"`
	UserEmail  string `json:"user_email"`
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
}
