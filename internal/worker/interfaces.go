package worker

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Consumer is the subset of the Kafka consumer the worker pool needs.
// *kafka.Consumer satisfies it directly.
type Consumer interface {
	Subscribe(topic string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Close() error
}

// Publisher sends a JSON value to a topic with acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
}
