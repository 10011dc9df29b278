// Package producer wraps the Kafka producer shared by the ingestion
// pipeline and the worker pool. One instance per process, constructed
// at startup and injected into the components that publish.
package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Producer publishes JSON messages with acknowledgement. Callers
// decide whether a publish failure is fatal: ingestion swallows it,
// the worker fails the message so it is redelivered.
type Producer struct {
	client  *kafka.Producer
	flushMs int
	log     *zap.Logger
}

// New connects to the broker with acks=all so a successful delivery
// report means the message is durable.
func New(brokers string, flushMs int, log *zap.Logger) (*Producer, error) {
	client, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return &Producer{client: client, flushMs: flushMs, log: log}, nil
}

// Publish serializes value to JSON and sends it to topic, waiting for
// the broker's delivery report. A nil key leaves partition assignment
// to the broker.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message for topic %s: %w", topic, err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          data,
	}
	if err := p.client.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce to topic %s: %w", topic, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryChan:
		report, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event for topic %s: %v", topic, e)
		}
		if report.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed for topic %s: %w", topic, report.TopicPartition.Error)
		}
		p.log.Debug("published message",
			zap.String("topic", topic),
			zap.Int32("partition", report.TopicPartition.Partition),
			zap.Int64("offset", int64(report.TopicPartition.Offset)))
		return nil
	}
}

// Close drains outstanding messages and closes the connection.
func (p *Producer) Close() {
	remaining := p.client.Flush(p.flushMs)
	if remaining > 0 {
		p.log.Warn("closing producer with undelivered messages", zap.Int("remaining", remaining))
	}
	p.client.Close()
}
