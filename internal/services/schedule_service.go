package services

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	config "ops-task-service.com/ops-task-service/internal/configs"
	"ops-task-service.com/ops-task-service/internal/constants"
	model "ops-task-service.com/ops-task-service/internal/models"
)

const scheduleTag = "ops_schedule"

// ScheduleService turns cron entries into freshly created tasks. It only
// creates (and optionally runs) tasks; it never picks up existing rows.
type ScheduleService struct {
	scheduler gocron.Scheduler
	tasks     *TaskService
	runner    *RunnerService
	logger    logrus.FieldLogger
}

func NewScheduleService(tasks *TaskService, runner *RunnerService, logger logrus.FieldLogger) (*ScheduleService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &ScheduleService{scheduler: s, tasks: tasks, runner: runner, logger: logger}, nil
}

func (s *ScheduleService) Register(schedules []config.Schedule) error {
	for _, sched := range schedules {
		entry := sched
		job, err := s.scheduler.NewJob(
			gocron.CronJob(entry.Cron, false),
			gocron.NewTask(func(e config.Schedule) {
				if _, err := s.Trigger(context.Background(), e); err != nil {
					s.logger.WithError(err).WithField("schedule", e.Name).Error("scheduled task failed")
				}
			}, entry),
			gocron.WithName(entry.Name),
			gocron.WithTags(scheduleTag, "type:"+entry.Type),
		)
		if err != nil {
			return fmt.Errorf("schedule %q with cron %q: %w", entry.Name, entry.Cron, err)
		}

		s.logger.WithFields(logrus.Fields{
			"schedule": entry.Name,
			"cron":     entry.Cron,
			"job_id":   job.ID().String(),
		}).Info("registered schedule")
	}
	return nil
}

// Trigger creates the task described by sched, as a cron firing would.
func (s *ScheduleService) Trigger(ctx context.Context, sched config.Schedule) (*model.Task, error) {
	task, err := s.tasks.CreateTask(ctx, model.TaskDraft{
		Name:        sched.Name,
		Type:        sched.Type,
		Config:      sched.Config,
		Priority:    sched.Priority,
		TriggeredBy: constants.TriggeredBySchedule,
		Approved:    sched.Approved,
	})
	if err != nil {
		return nil, err
	}

	if !sched.Run || s.runner == nil {
		return task, nil
	}
	return s.runner.RunTask(ctx, task.ID)
}

func (s *ScheduleService) JobCount() int {
	return len(s.scheduler.Jobs())
}

func (s *ScheduleService) Start() {
	s.scheduler.Start()
}

func (s *ScheduleService) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.WithError(err).Warn("error shutting down scheduler")
	}
}
