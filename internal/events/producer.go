package events

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds the roster event writer. Messages are hashed by key so every
// change to one activity lands on the same partition, in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
}
