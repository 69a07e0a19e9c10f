package model

import (
	"time"

	"gorm.io/datatypes"

	"ops-task-service.com/ops-task-service/internal/constants"
)

// Task is an ops_tasks row. Numbers inside Config and Result come back from
// the database as json.Number.
type Task struct {
	ID           string               `gorm:"primaryKey;size:36" json:"id"`
	Name         string               `gorm:"not null" json:"name"`
	Type         string               `gorm:"type:varchar(64);not null;index" json:"type"`
	Status       constants.TaskStatus `gorm:"type:varchar(20);not null;index:idx_ops_tasks_pending,priority:1" json:"status"`
	Priority     int                  `gorm:"not null;index:idx_ops_tasks_pending,priority:2" json:"priority"`
	Config       datatypes.JSONMap    `json:"config,omitempty"`
	Result       datatypes.JSONMap    `json:"result,omitempty"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	Approved     bool                 `gorm:"not null;default:false" json:"approved"`
	TriggeredBy  string               `gorm:"type:varchar(64);not null;index" json:"triggered_by"`
	Version      uint                 `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time            `gorm:"index:idx_ops_tasks_pending,priority:3" json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

func (Task) TableName() string {
	return "ops_tasks"
}

// TaskDraft carries caller input for a new task. Priority and TriggeredBy
// fall back to defaults when unset.
type TaskDraft struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Config      map[string]any `json:"config,omitempty"`
	Priority    *int           `json:"priority,omitempty"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
	Approved    bool           `json:"approved,omitempty"`
}

type TaskFilter struct {
	Status      constants.TaskStatus
	TriggeredBy string
	Limit       int
}
