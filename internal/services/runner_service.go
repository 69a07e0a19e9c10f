package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "ops-task-service.com/ops-task-service/internal/errors"
	"ops-task-service.com/ops-task-service/internal/executors"
	model "ops-task-service.com/ops-task-service/internal/models"
)

type TaskExecutor interface {
	Execute(ctx context.Context, taskType string, config map[string]any) (map[string]any, error)
}

// RunnerService drives a task through start, the executor and the matching
// terminal transition. It holds no queue: every run is triggered by a caller.
type RunnerService struct {
	tasks    *TaskService
	executor TaskExecutor
	timeout  time.Duration
	logger   logrus.FieldLogger
}

func NewRunnerService(tasks *TaskService, executor TaskExecutor, timeout time.Duration, logger logrus.FieldLogger) *RunnerService {
	return &RunnerService{
		tasks:    tasks,
		executor: executor,
		timeout:  timeout,
		logger:   logger,
	}
}

// RunTask returns the task in its post-run state. Executor failures are
// recorded on the task via FailTask and are not returned as errors; only
// lifecycle errors (not found, conflict, approval) are.
func (r *RunnerService) RunTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := r.tasks.StartTask(ctx, id)
	if err != nil {
		return nil, err
	}

	result, execErr := r.execute(ctx, task)

	// The task is running now; its terminal write must land even if the
	// caller has gone away.
	recordCtx := context.WithoutCancel(ctx)
	log := r.logger.WithFields(logrus.Fields{"task_id": task.ID, "task_type": task.Type})

	switch {
	case errors.Is(execErr, executors.ErrManualProcessing):
		log.Info("no executor registered, task left running for manual processing")
		return task, nil
	case execErr != nil:
		wrapped := apperrors.Newf(apperrors.ErrExecutor, "%s executor: %v", task.Type, execErr)
		log.WithError(wrapped).Warn("executor failed")
		return r.tasks.FailTask(recordCtx, task.ID, execErr.Error())
	default:
		return r.tasks.CompleteTask(recordCtx, task.ID, result)
	}
}

func (r *RunnerService) execute(ctx context.Context, task *model.Task) (result map[string]any, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = apperrors.Newf(apperrors.ErrExecutor, "executor panicked: %v", p)
		}
	}()

	return r.executor.Execute(ctx, task.Type, map[string]any(task.Config))
}
