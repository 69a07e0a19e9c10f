package config

import (
	"github.com/segmentio/kafka-go"
)

func NewKafkaProducer(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: int(kafka.RequireOne),
		Async:        false,
	})
}
