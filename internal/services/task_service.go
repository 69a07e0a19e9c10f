package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"ops-task-service.com/ops-task-service/internal/approval"
	"ops-task-service.com/ops-task-service/internal/constants"
	apperrors "ops-task-service.com/ops-task-service/internal/errors"
	"ops-task-service.com/ops-task-service/internal/eventlog"
	model "ops-task-service.com/ops-task-service/internal/models"
	repository "ops-task-service.com/ops-task-service/internal/repositories"
)

type TaskService struct {
	repo      *repository.TaskRepository
	events    eventlog.Recorder
	agentName string
	logger    logrus.FieldLogger
}

func NewTaskService(
	repo *repository.TaskRepository,
	events eventlog.Recorder,
	agentName string,
	logger logrus.FieldLogger,
) *TaskService {
	return &TaskService{
		repo:      repo,
		events:    events,
		agentName: agentName,
		logger:    logger,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, draft model.TaskDraft) (*model.Task, error) {
	task, err := s.repo.Insert(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.record(constants.SeverityInfo, fmt.Sprintf("Created ops task: %s", task.Name), task, nil)
	return task, nil
}

// StartTask moves a pending task to running. Destructive task types must
// carry approved=true; the check happens in the same statement as the status
// change so a concurrent revoke cannot slip between them.
func (s *TaskService) StartTask(ctx context.Context, id string) (*model.Task, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task, err := s.repo.UpdateStatus(ctx, repository.Transition{
		ID:              id,
		From:            constants.StatusPending,
		To:              constants.StatusRunning,
		Fields:          map[string]any{"started_at": now},
		RequireApproved: approval.IsDestructive(current.Type),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrApprovalRequired) {
			s.record(constants.SeverityWarning,
				fmt.Sprintf("Start blocked, approval required: %s", current.Name), current, nil)
		}
		return nil, err
	}

	s.record(constants.SeverityInfo, fmt.Sprintf("Started executing task: %s", task.Name), task, nil)
	return task, nil
}

func (s *TaskService) CompleteTask(ctx context.Context, id string, result map[string]any) (*model.Task, error) {
	now := time.Now().UTC()
	task, err := s.repo.UpdateStatus(ctx, repository.Transition{
		ID:   id,
		From: constants.StatusRunning,
		To:   constants.StatusCompleted,
		Fields: map[string]any{
			"result":        datatypes.JSONMap(result),
			"error_message": nil,
			"completed_at":  now,
		},
	})
	if err != nil {
		return nil, err
	}

	s.record(constants.SeverityInfo, fmt.Sprintf("Task completed successfully: %s", task.ID), task,
		map[string]any{"result": result})
	return task, nil
}

func (s *TaskService) FailTask(ctx context.Context, id, errorMessage string) (*model.Task, error) {
	now := time.Now().UTC()
	task, err := s.repo.UpdateStatus(ctx, repository.Transition{
		ID:   id,
		From: constants.StatusRunning,
		To:   constants.StatusFailed,
		Fields: map[string]any{
			"result":        nil,
			"error_message": errorMessage,
			"completed_at":  now,
		},
	})
	if err != nil {
		return nil, err
	}

	s.record(constants.SeverityError, fmt.Sprintf("Task failed: %s", task.ID), task,
		map[string]any{"error": errorMessage})
	return task, nil
}

func (s *TaskService) ApproveTask(ctx context.Context, id string, approved bool) (*model.Task, error) {
	task, err := s.repo.SetApproved(ctx, id, approved)
	if err != nil {
		return nil, err
	}

	verb := "approved"
	if !approved {
		verb = "approval revoked"
	}
	s.record(constants.SeverityInfo, fmt.Sprintf("Task %s: %s", verb, task.Name), task, nil)
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	return s.repo.List(ctx, filter)
}

func (s *TaskService) ListPending(ctx context.Context, limit int) ([]model.Task, error) {
	return s.repo.ListPending(ctx, limit)
}

func (s *TaskService) record(severity constants.Severity, message string, task *model.Task, extra map[string]any) {
	fields := map[string]any{
		"task_id":   task.ID,
		"task_type": task.Type,
		"status":    string(task.Status),
	}
	for k, v := range extra {
		fields[k] = v
	}

	s.logger.WithFields(logrus.Fields(fields)).Debug(message)
	s.events.Record(s.agentName, message, severity, fields)
}
