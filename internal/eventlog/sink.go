package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ops-task-service.com/ops-task-service/internal/constants"
	model "ops-task-service.com/ops-task-service/internal/models"
)

// Recorder is the fire-and-forget side of the event log. Record never blocks
// on I/O and never reports failure to the caller.
type Recorder interface {
	Record(agentName, message string, severity constants.Severity, eventContext map[string]any)
}

// Writer persists a single entry.
type Writer interface {
	Write(ctx context.Context, entry *model.EventLog) error
}

// AsyncSink buffers entries in a bounded queue drained by background
// workers. A full queue drops the entry; write failures go to the process
// logger.
type AsyncSink struct {
	queue        chan *model.EventLog
	wg           sync.WaitGroup
	mu           sync.RWMutex
	closed       bool
	writer       Writer
	writeTimeout time.Duration
	logger       logrus.FieldLogger
}

func NewAsyncSink(writer Writer, workers, queueSize int, writeTimeout time.Duration, logger logrus.FieldLogger) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	s := &AsyncSink{
		queue:        make(chan *model.EventLog, queueSize),
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}

	for i := 1; i <= workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	return s
}

func (s *AsyncSink) Record(agentName, message string, severity constants.Severity, eventContext map[string]any) {
	if !severity.Valid() {
		severity = constants.SeverityInfo
	}
	entry := &model.EventLog{
		AgentName: agentName,
		Message:   message,
		Severity:  severity,
		Context:   eventContext,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.WithField("message", message).Warn("event log sink closed, dropping entry")
		return
	}

	select {
	case s.queue <- entry:
	default:
		s.logger.WithField("message", message).Warn("event log queue full, dropping entry")
	}
}

func (s *AsyncSink) worker(workerID int) {
	defer s.wg.Done()

	for entry := range s.queue {
		s.write(workerID, entry)
	}
}

func (s *AsyncSink) write(workerID int, entry *model.EventLog) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.writer.Write(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"worker":     workerID,
			"agent_name": entry.AgentName,
			"severity":   entry.Severity,
			"message":    entry.Message,
		}).Error("failed to write event log entry")
	}
}

// Shutdown stops accepting entries and waits for the queue to drain or ctx
// to expire, whichever comes first.
func (s *AsyncSink) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("event log sink drained")
	case <-ctx.Done():
		s.logger.Warn("event log sink shutdown timed out")
	}
}
