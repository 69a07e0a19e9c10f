package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	config "ops-task-service.com/ops-task-service/internal/configs"
	"ops-task-service.com/ops-task-service/internal/constants"
	apperrors "ops-task-service.com/ops-task-service/internal/errors"
	"ops-task-service.com/ops-task-service/internal/eventlog"
	"ops-task-service.com/ops-task-service/internal/executors"
	model "ops-task-service.com/ops-task-service/internal/models"
	repository "ops-task-service.com/ops-task-service/internal/repositories"
)

type recordedEvent struct {
	agent    string
	message  string
	severity constants.Severity
	context  map[string]any
}

// memoryRecorder is a synchronous Recorder for assertions.
type memoryRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memoryRecorder) Record(agentName, message string, severity constants.Severity, eventContext map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{agentName, message, severity, eventContext})
}

func (m *memoryRecorder) snapshot() []recordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedEvent(nil), m.events...)
}

type failingWriter struct{}

func (failingWriter) Write(ctx context.Context, entry *model.EventLog) error {
	return errors.New("log store unavailable")
}

type stubExecutor struct {
	result map[string]any
	err    error
	panics bool
	calls  int
}

func (s *stubExecutor) Execute(ctx context.Context, taskType string, cfg map[string]any) (map[string]any, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&model.Task{}, &model.EventLog{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newTaskService(t *testing.T) (*TaskService, *memoryRecorder) {
	logger, _ := test.NewNullLogger()
	rec := &memoryRecorder{}
	return NewTaskService(repository.NewTaskRepository(setupTestDB(t)), rec, "ops_agent", logger), rec
}

func assertTimestampInvariants(t *testing.T, task *model.Task) {
	t.Helper()
	require.True(t, task.Status.Valid(), "unexpected status %q", task.Status)
	assert.Equal(t, task.Status != constants.StatusPending, task.StartedAt != nil, "started_at for %s", task.Status)
	assert.Equal(t, task.Status.Terminal(), task.CompletedAt != nil, "completed_at for %s", task.Status)
}

func TestTaskService_BackupScenario(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database", TriggeredBy: "schedule"})
	require.NoError(t, err)
	assertTimestampInvariants(t, task)

	task, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRunning, task.Status)
	assertTimestampInvariants(t, task)

	task, err = svc.CompleteTask(ctx, task.ID, map[string]any{"status": "success", "size_mb": 156})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, task.Status)
	assert.Equal(t, "schedule", task.TriggeredBy)
	assertTimestampInvariants(t, task)
	assert.Equal(t, json.Number("156"), task.Result["size_mb"])
	assert.Nil(t, task.ErrorMessage)

	events := rec.snapshot()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "ops_agent", e.agent)
		assert.Equal(t, constants.SeverityInfo, e.severity)
		assert.Equal(t, task.ID, e.context["task_id"])
	}
}

func TestTaskService_DestructiveApprovalScenario(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Delete bucket", Type: "delete_resource", Approved: false})
	require.NoError(t, err)

	_, err = svc.StartTask(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrApprovalRequired)

	still, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, still.Status)
	assertTimestampInvariants(t, still)

	_, err = svc.ApproveTask(ctx, task.ID, true)
	require.NoError(t, err)

	task, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRunning, task.Status)

	var warned bool
	for _, e := range rec.snapshot() {
		if e.severity == constants.SeverityWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestTaskService_DestructiveTypesAlwaysGated(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	for _, typ := range []string{"delete_resource", "drop_database", "terminate_server", "revoke_access", "cancel_subscription"} {
		task, err := svc.CreateTask(ctx, model.TaskDraft{
			Name: typ, Type: typ, Priority: new(int), TriggeredBy: "manual", Config: map[string]any{"force": true},
		})
		require.NoError(t, err)

		_, err = svc.StartTask(ctx, task.ID)
		assert.ErrorIs(t, err, apperrors.ErrApprovalRequired, typ)
	}
}

func TestTaskService_FailScenario(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database"})
	require.NoError(t, err)
	_, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)

	task, err = svc.FailTask(ctx, task.ID, "Connection timeout")
	require.NoError(t, err)

	assert.Equal(t, constants.StatusFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "Connection timeout", *task.ErrorMessage)
	assert.Nil(t, task.Result)
	assertTimestampInvariants(t, task)

	events := rec.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, constants.SeverityError, last.severity)
	assert.Equal(t, "Connection timeout", last.context["error"])
}

func TestTaskService_RejectsInvalidEdges(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Deploy", Type: "deploy_site"})
	require.NoError(t, err)

	_, err = svc.CompleteTask(ctx, task.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "pending -> completed")
	_, err = svc.FailTask(ctx, task.ID, "nope")
	assert.ErrorIs(t, err, apperrors.ErrConflict, "pending -> failed")

	_, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	_, err = svc.StartTask(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "running -> running")

	_, err = svc.CompleteTask(ctx, task.ID, map[string]any{"ok": true})
	require.NoError(t, err)
	_, err = svc.FailTask(ctx, task.ID, "late")
	assert.ErrorIs(t, err, apperrors.ErrConflict, "completed -> failed")
	_, err = svc.CompleteTask(ctx, task.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "completed -> completed")
	_, err = svc.ApproveTask(ctx, task.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	final, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, final.Status)
	assert.Nil(t, final.ErrorMessage)
}

func TestTaskService_UnknownTask(t *testing.T) {
	svc, _ := newTaskService(t)

	_, err := svc.StartTask(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	_, err = svc.CompleteTask(context.Background(), "does-not-exist", nil)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestTaskService_CreateValidation(t *testing.T) {
	svc, rec := newTaskService(t)

	_, err := svc.CreateTask(context.Background(), model.TaskDraft{Name: "no type"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, rec.snapshot())
}

func TestTaskService_ConcurrentStart(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.StartTask(ctx, task.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
		} else if errors.Is(err, apperrors.ErrConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	started := 0
	for _, e := range rec.snapshot() {
		if strings.HasPrefix(e.message, "Started executing task") {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestTaskService_ListPending(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	for _, p := range []int{1, 10, 5} {
		priority := p
		_, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Test Task", Type: "monitor_uptime", Priority: &priority, TriggeredBy: "test"})
		require.NoError(t, err)
	}

	tasks, err := svc.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int{10, 5, 1}, []int{tasks[0].Priority, tasks[1].Priority, tasks[2].Priority})

	listed, err := svc.ListTasks(ctx, model.TaskFilter{TriggeredBy: "test", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestTaskService_LogSinkFailureDoesNotBlockTransition(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := eventlog.NewAsyncSink(failingWriter{}, 1, 8, time.Second, logger)
	svc := NewTaskService(repository.NewTaskRepository(setupTestDB(t)), sink, "ops_agent", logger)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database"})
	require.NoError(t, err)
	task, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRunning, task.Status)

	sink.Shutdown(context.Background())

	var reported int
	for _, e := range hook.AllEntries() {
		if e.Message == "failed to write event log entry" {
			reported++
		}
	}
	assert.Equal(t, 2, reported)
}

func newRunner(t *testing.T, exec TaskExecutor) (*RunnerService, *TaskService) {
	svc, _ := newTaskService(t)
	logger, _ := test.NewNullLogger()
	return NewRunnerService(svc, exec, time.Second, logger), svc
}

func TestRunnerService_Completes(t *testing.T) {
	exec := &stubExecutor{result: map[string]any{"status": "success", "size_mb": 156}}
	runner, svc := newRunner(t, exec)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database"})
	require.NoError(t, err)

	task, err = runner.RunTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, task.Status)
	assert.Equal(t, json.Number("156"), task.Result["size_mb"])
	assert.Equal(t, 1, exec.calls)
}

func TestRunnerService_ExecutorFailureRecordedAsFail(t *testing.T) {
	exec := &stubExecutor{err: errors.New("Connection timeout")}
	runner, svc := newRunner(t, exec)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Backup", Type: "backup_database"})
	require.NoError(t, err)

	task, err = runner.RunTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "Connection timeout", *task.ErrorMessage)
}

func TestRunnerService_ExecutorPanicRecordedAsFail(t *testing.T) {
	runner, svc := newRunner(t, &stubExecutor{panics: true})
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Deploy", Type: "deploy_site"})
	require.NoError(t, err)

	task, err = runner.RunTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, task.Status)
	assert.Contains(t, *task.ErrorMessage, "executor panicked")
}

func TestRunnerService_ManualTypeStaysRunning(t *testing.T) {
	runner, svc := newRunner(t, &stubExecutor{err: executors.ErrManualProcessing})
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Rotate", Type: "rotate_keys"})
	require.NoError(t, err)

	task, err = runner.RunTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRunning, task.Status)
	assertTimestampInvariants(t, task)
}

func TestRunnerService_ApprovalBlocksExecutor(t *testing.T) {
	exec := &stubExecutor{}
	runner, svc := newRunner(t, exec)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, model.TaskDraft{Name: "Drop", Type: "drop_database"})
	require.NoError(t, err)

	_, err = runner.RunTask(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrApprovalRequired)
	assert.Equal(t, 0, exec.calls)
}

func TestScheduleService_Trigger(t *testing.T) {
	exec := &stubExecutor{result: map[string]any{"status": "completed"}}
	runner, svc := newRunner(t, exec)
	logger, _ := test.NewNullLogger()

	schedules, err := NewScheduleService(svc, runner, logger)
	require.NoError(t, err)
	defer schedules.Stop()

	priority := 8
	require.NoError(t, schedules.Register([]config.Schedule{
		{Name: "Nightly backup", Cron: "0 3 * * *", Type: "backup_database", Priority: &priority, Run: true},
		{Name: "Uptime", Cron: "*/5 * * * *", Type: "monitor_uptime", Config: map[string]any{"url": "https://example.com"}},
	}))
	assert.Equal(t, 2, schedules.JobCount())

	ctx := context.Background()
	ran, err := schedules.Trigger(ctx, config.Schedule{Name: "Nightly backup", Type: "backup_database", Priority: &priority, Run: true})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, ran.Status)
	assert.Equal(t, constants.TriggeredBySchedule, ran.TriggeredBy)
	assert.Equal(t, 8, ran.Priority)

	queued, err := schedules.Trigger(ctx, config.Schedule{Name: "Uptime", Type: "monitor_uptime"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, queued.Status)
}

func TestScheduleService_RejectsBadCron(t *testing.T) {
	svc, _ := newTaskService(t)
	logger, _ := test.NewNullLogger()

	schedules, err := NewScheduleService(svc, nil, logger)
	require.NoError(t, err)
	defer schedules.Stop()

	err = schedules.Register([]config.Schedule{{Name: "bad", Cron: "not a cron", Type: "backup_database"}})
	assert.Error(t, err)
}
