package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	model "ops-task-service.com/ops-task-service/internal/models"
)

type EventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Write appends entry to infra_logs. It satisfies eventlog.Writer.
func (r *EventLogRepository) Write(ctx context.Context, entry *model.EventLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *EventLogRepository) List(ctx context.Context, filter model.EventLogFilter) ([]model.EventLog, error) {
	limit, err := clampLimit(filter.Limit)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&model.EventLog{})
	if filter.AgentName != "" {
		query = query.Where("agent_name = ?", filter.AgentName)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var entries []model.EventLog
	err = query.Order("created_at desc").Order("id desc").Limit(limit).Find(&entries).Error
	return entries, err
}
