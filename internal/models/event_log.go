package model

import (
	"time"

	"gorm.io/datatypes"

	"ops-task-service.com/ops-task-service/internal/constants"
)

// EventLog is an append-only audit row. Rows are never updated.
type EventLog struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	AgentName string             `gorm:"type:varchar(64);not null;index" json:"agent_name"`
	Message   string             `gorm:"not null" json:"message"`
	Severity  constants.Severity `gorm:"type:varchar(16);not null;index" json:"severity"`
	Context   datatypes.JSONMap  `json:"context,omitempty"`
	CreatedAt time.Time          `gorm:"index" json:"created_at"`
}

func (EventLog) TableName() string {
	return "infra_logs"
}

type EventLogFilter struct {
	AgentName string
	Severity  constants.Severity
	Limit     int
}
