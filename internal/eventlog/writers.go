package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/rueidis"
	"github.com/segmentio/kafka-go"

	model "ops-task-service.com/ops-task-service/internal/models"
)

// MultiWriter fans an entry out to every writer and joins their errors.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, entry *model.EventLog) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisStreamWriter mirrors entries onto a Redis stream for live tailing.
type RedisStreamWriter struct {
	client rueidis.Client
	stream string
}

func NewRedisStreamWriter(client rueidis.Client, stream string) *RedisStreamWriter {
	return &RedisStreamWriter{client: client, stream: stream}
}

func (w *RedisStreamWriter) Write(ctx context.Context, entry *model.EventLog) error {
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return err
	}

	cmd := w.client.B().Xadd().Key(w.stream).Id("*").FieldValue().
		FieldValue("agent_name", entry.AgentName).
		FieldValue("message", entry.Message).
		FieldValue("severity", string(entry.Severity)).
		FieldValue("context", string(contextJSON)).
		FieldValue("created_at", entry.CreatedAt.Format(time.RFC3339Nano)).
		Build()

	return w.client.Do(ctx, cmd).Error()
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaWriter publishes entries as JSON, keyed by agent name so one agent's
// events stay ordered within a partition.
type KafkaWriter struct {
	producer MessageWriter
}

func NewKafkaWriter(producer MessageWriter) *KafkaWriter {
	return &KafkaWriter{producer: producer}
}

func (w *KafkaWriter) Write(ctx context.Context, entry *model.EventLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return w.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.AgentName),
		Value: payload,
		Time:  entry.CreatedAt,
	})
}
