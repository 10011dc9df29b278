// Package worker consumes the inbound error-events topic, runs the
// remediation analyzer over each event with bounded concurrency,
// publishes the outcome to the results topic and commits the consumed
// offset only after the publish succeeded. Everything short of a
// committed offset is redeliverable, giving at-least-once processing.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
	"github.com/Err-Tools/error-remediation-pipeline/internal/remediation"
)

const truncationMarker = "\n...[truncated]"

// Service is a single consumer-group member of the worker pool.
type Service struct {
	cfg      *config.Config
	consumer Consumer
	producer Publisher
	analyzer remediation.Analyzer
	log      *zap.Logger

	processed int64
	succeeded int64
	failed    int64
}

func NewService(cfg *config.Config, consumer Consumer, producer Publisher, analyzer remediation.Analyzer, log *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		consumer: consumer,
		producer: producer,
		analyzer: analyzer,
		log:      log,
	}
}

// NewConsumer builds the production Kafka consumer for the pool.
// Auto-commit is off: offsets advance only through explicit
// per-message commits. The poll interval is far above the session
// timeout because remediation calls can run for minutes.
func NewConsumer(cfg config.KafkaConfig) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":     cfg.Brokers,
		"group.id":              cfg.WorkerGroup,
		"auto.offset.reset":     cfg.AutoOffsetReset,
		"enable.auto.commit":    false,
		"session.timeout.ms":    cfg.SessionTimeoutMs,
		"heartbeat.interval.ms": cfg.HeartbeatMs,
		"max.poll.interval.ms":  cfg.MaxPollIntervalMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, nil
}

// Run consumes the inbound topic until ctx is cancelled. Intake runs
// on this goroutine; a fixed set of workers pulls from a bounded
// channel, so at most MaxConcurrency messages are past admission at
// once. On shutdown intake stops, the channel closes and in-flight
// work is awaited to completion before returning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.consumer.Subscribe(s.cfg.Kafka.InboundTopic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Kafka.InboundTopic, err)
	}

	concurrency := s.cfg.Processing.MaxConcurrency
	messages := make(chan *kafka.Message, concurrency)

	// In-flight remediation is awaited on shutdown, never cancelled;
	// a half-processed message would otherwise be ambiguous.
	procCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, procCtx, workerID, messages)
		}(i + 1)
	}

	s.log.Info("worker pool started",
		zap.String("topic", s.cfg.Kafka.InboundTopic),
		zap.String("group", s.cfg.Kafka.WorkerGroup),
		zap.Int("concurrency", concurrency))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown requested, draining in-flight work")
			close(messages)
			wg.Wait()
			return nil
		default:
			msg, err := s.consumer.ReadMessage(time.Second)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				s.log.Error("failed to read message", zap.Error(err))
				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				// Not admitted, not committed; redelivered after restart.
				close(messages)
				wg.Wait()
				return nil
			}
		}
	}
}

// worker drains the message channel. Once shutdown begins, queued
// messages are skipped without commit so they come back on the next
// run instead of delaying the drain.
func (s *Service) worker(ctx, procCtx context.Context, workerID int, messages <-chan *kafka.Message) {
	for msg := range messages {
		if ctx.Err() != nil {
			continue
		}
		if err := s.processMessage(procCtx, msg); err != nil {
			atomic.AddInt64(&s.failed, 1)
			s.log.Error("message processing failed, offset left uncommitted",
				zap.Int("worker", workerID),
				zap.Int32("partition", msg.TopicPartition.Partition),
				zap.Int64("offset", int64(msg.TopicPartition.Offset)),
				zap.Error(err))
			continue
		}
		atomic.AddInt64(&s.succeeded, 1)
	}
}

// processMessage runs one message through decode, remediation, result
// publish and offset commit. Any error before the commit leaves the
// message redeliverable.
func (s *Service) processMessage(ctx context.Context, msg *kafka.Message) error {
	processed := atomic.AddInt64(&s.processed, 1)
	if processed%100 == 0 {
		s.log.Info("processing statistics",
			zap.Int64("processed", processed),
			zap.Int64("succeeded", atomic.LoadInt64(&s.succeeded)),
			zap.Int64("failed", atomic.LoadInt64(&s.failed)))
	}

	var event events.NormalizedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to decode inbound event: %w", err)
	}

	eventID := ""
	if event.ReferenceID != nil {
		eventID = *event.ReferenceID
	}

	problem := s.buildProblem(event)

	result, err := s.analyzer.Analyze(ctx, problem)
	if err != nil {
		return fmt.Errorf("remediation failed for event %q: %w", eventID, err)
	}

	payload := events.ResultMessage{EventID: eventID, Result: result}
	if err := s.producer.Publish(ctx, s.cfg.Kafka.ResultsTopic, nil, payload); err != nil {
		return fmt.Errorf("failed to publish result for event %q: %w", eventID, err)
	}

	// Commit exactly this message's offset on its own partition.
	// Committing the consumer's whole position would let a fast later
	// message advance past an earlier one still in flight.
	commit := kafka.TopicPartition{
		Topic:     msg.TopicPartition.Topic,
		Partition: msg.TopicPartition.Partition,
		Offset:    msg.TopicPartition.Offset + 1,
	}
	if _, err := s.consumer.CommitOffsets([]kafka.TopicPartition{commit}); err != nil {
		return fmt.Errorf("failed to commit offset for event %q: %w", eventID, err)
	}

	s.log.Info("published remediation result",
		zap.String("event_id", eventID),
		zap.Int32("partition", msg.TopicPartition.Partition),
		zap.Int64("offset", int64(msg.TopicPartition.Offset)))
	return nil
}

// buildProblem renders a human-readable problem statement for the
// analyzer. The stack trace is capped because the remediation backend
// has bounded input capacity.
func (s *Service) buildProblem(event events.NormalizedEvent) string {
	stack := deref(event.StackTrace)
	if limit := s.cfg.Processing.StackTraceLimit; len(stack) > limit {
		stack = stack[:limit] + truncationMarker
	}

	return fmt.Sprintf(
		"Error event:\nSource: %s\nFunction: %s\nMessage: %s\nReference: %s\nStack:\n%s\n",
		deref(event.Source),
		deref(event.Function),
		deref(event.Message),
		deref(event.ReferenceID),
		stack,
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Close shuts the consumer down after Run has returned.
func (s *Service) Close() error {
	return s.consumer.Close()
}
