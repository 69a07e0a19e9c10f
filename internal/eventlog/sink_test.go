package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ops-task-service.com/ops-task-service/internal/constants"
	model "ops-task-service.com/ops-task-service/internal/models"
)

type recordingWriter struct {
	mu      sync.Mutex
	entries []*model.EventLog
	err     error
	block   chan struct{}
}

func (w *recordingWriter) Write(ctx context.Context, entry *model.EventLog) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func TestAsyncSink_DrainsOnShutdown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	writer := &recordingWriter{}
	sink := NewAsyncSink(writer, 2, 10, time.Second, logger)

	for i := 0; i < 5; i++ {
		sink.Record("ops_agent", "task started", constants.SeverityInfo, map[string]any{"i": i})
	}
	sink.Shutdown(context.Background())

	assert.Equal(t, 5, writer.count())
}

func TestAsyncSink_WriteFailureIsReportedNotRaised(t *testing.T) {
	logger, hook := test.NewNullLogger()
	writer := &recordingWriter{err: errors.New("db unavailable")}
	sink := NewAsyncSink(writer, 1, 4, time.Second, logger)

	sink.Record("ops_agent", "task failed", constants.SeverityError, nil)
	sink.Shutdown(context.Background())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "failed to write event log entry" {
			found = true
			assert.Equal(t, "task failed", e.Data["message"])
		}
	}
	assert.True(t, found)
}

func TestAsyncSink_DropsWhenQueueFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	writer := &recordingWriter{block: make(chan struct{})}
	sink := NewAsyncSink(writer, 1, 1, time.Second, logger)

	// One entry may be held by the blocked worker and one sits in the queue;
	// everything beyond that must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sink.Record("ops_agent", "burst", constants.SeverityInfo, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(writer.block)
	sink.Shutdown(context.Background())

	assert.LessOrEqual(t, writer.count(), 2)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestAsyncSink_RecordAfterShutdown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	writer := &recordingWriter{}
	sink := NewAsyncSink(writer, 1, 1, time.Second, logger)
	sink.Shutdown(context.Background())

	assert.NotPanics(t, func() {
		sink.Record("ops_agent", "late", constants.SeverityInfo, nil)
	})
	sink.Shutdown(context.Background())
	assert.Equal(t, 0, writer.count())
}

func TestAsyncSink_NormalizesSeverity(t *testing.T) {
	logger, _ := test.NewNullLogger()
	writer := &recordingWriter{}
	sink := NewAsyncSink(writer, 1, 1, time.Second, logger)

	sink.Record("ops_agent", "odd", constants.Severity("critical"), nil)
	sink.Shutdown(context.Background())

	require.Equal(t, 1, writer.count())
	assert.Equal(t, constants.SeverityInfo, writer.entries[0].Severity)
}

func TestMultiWriter_JoinsErrors(t *testing.T) {
	ok := &recordingWriter{}
	bad := &recordingWriter{err: errors.New("redis down")}

	err := MultiWriter{ok, bad}.Write(context.Background(), &model.EventLog{Message: "x"})

	assert.EqualError(t, err, "redis down")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())
}

type mockProducer struct{ mock.Mock }

func (m *mockProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func TestKafkaWriter_PublishesJSON(t *testing.T) {
	producer := new(mockProducer)
	producer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "ops_agent" {
			return false
		}
		var decoded model.EventLog
		if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
			return false
		}
		return decoded.Message == "task completed" && decoded.Context["task_id"] == "abc"
	})).Return(nil).Once()

	err := NewKafkaWriter(producer).Write(context.Background(), &model.EventLog{
		AgentName: "ops_agent",
		Message:   "task completed",
		Severity:  constants.SeverityInfo,
		Context:   map[string]any{"task_id": "abc"},
	})

	require.NoError(t, err)
	producer.AssertExpectations(t)
}
