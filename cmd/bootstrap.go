package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	config "ops-task-service.com/ops-task-service/internal/configs"
	"ops-task-service.com/ops-task-service/internal/eventlog"
	"ops-task-service.com/ops-task-service/internal/executors"
	repository "ops-task-service.com/ops-task-service/internal/repositories"
	"ops-task-service.com/ops-task-service/internal/services"
)

// app is the wired object graph shared by serve and the one-shot commands.
type app struct {
	cfg       config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	eventRepo *repository.EventLogRepository
	sink      *eventlog.AsyncSink
	tasks     *services.TaskService
	runner    *services.RunnerService
	closers   []func()
}

func bootstrap() (*app, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug(".env file not found, using environment variables")
	}

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	db, err := config.NewDatabaseClient(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	a.eventRepo = repository.NewEventLogRepository(db)
	writers := eventlog.MultiWriter{a.eventRepo}

	if cfg.RedisAddr != "" {
		client, err := config.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		writers = append(writers, eventlog.NewRedisStreamWriter(client, cfg.EventStreamKey))
		logger.WithField("stream", cfg.EventStreamKey).Info("mirroring event log to redis stream")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := config.NewKafkaProducer(cfg.KafkaBrokers, cfg.EventTopic)
		a.closers = append(a.closers, func() {
			if err := producer.Close(); err != nil {
				logger.WithError(err).Warn("error closing kafka producer")
			}
		})
		writers = append(writers, eventlog.NewKafkaWriter(producer))
		logger.WithField("topic", cfg.EventTopic).Info("publishing event log to kafka")
	}

	var sinkWriter eventlog.Writer = writers
	if len(writers) == 1 {
		sinkWriter = a.eventRepo
	}
	a.sink = eventlog.NewAsyncSink(sinkWriter, cfg.EventLogWorkers, cfg.EventLogQueueSize, 0, logger)

	registry, err := executors.NewDefaultRegistry(executors.Options{
		BackupBucket: cfg.BackupBucket,
		DeployAPIKey: cfg.DeployAPIKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	taskRepo := repository.NewTaskRepository(db)
	a.tasks = services.NewTaskService(taskRepo, a.sink, cfg.AgentName, logger)
	a.runner = services.NewRunnerService(a.tasks, registry, cfg.ExecutorTimeout(), logger)

	return a, nil
}

// close drains the event log before tearing down its writers.
func (a *app) close(ctx context.Context) {
	a.sink.Shutdown(ctx)

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
