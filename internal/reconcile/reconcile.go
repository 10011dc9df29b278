// Package reconcile consumes the results topic and folds remediation
// outcomes back into the record store: the newest record matching the
// result's correlation key moves from processing to resolved.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

// Consumer is the subset of the Kafka consumer the reconciler needs.
type Consumer interface {
	Subscribe(topic string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

// Resolver transitions the matching record's lifecycle status.
type Resolver interface {
	ResolveLatestByReference(ctx context.Context, referenceID string) (*store.ErrorEvent, error)
}

// Service is the results-topic consumer.
type Service struct {
	cfg      *config.Config
	consumer Consumer
	resolver Resolver
	log      *zap.Logger
}

func NewService(cfg *config.Config, consumer Consumer, resolver Resolver, log *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		consumer: consumer,
		resolver: resolver,
		log:      log,
	}
}

// NewConsumer builds the production Kafka consumer for the reconciler
// group. Unlike the worker pool this group keeps the broker's default
// auto-commit policy: a benignly skipped result never needs redelivery
// and a store failure is retried on the next run at worst.
func NewConsumer(cfg config.KafkaConfig) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"group.id":          cfg.ReconcilerGroup,
		"auto.offset.reset": cfg.AutoOffsetReset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, nil
}

// Run consumes results until ctx is cancelled. No single message can
// crash the loop: decode failures, missing correlation keys and store
// errors are logged and the loop moves on.
func (s *Service) Run(ctx context.Context) error {
	if err := s.consumer.Subscribe(s.cfg.Kafka.ResultsTopic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Kafka.ResultsTopic, err)
	}

	s.log.Info("reconciler started",
		zap.String("topic", s.cfg.Kafka.ResultsTopic),
		zap.String("group", s.cfg.Kafka.ReconcilerGroup))

	for {
		select {
		case <-ctx.Done():
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
			s.handleMessage(ctx, msg)
		}
	}
}

// handleMessage reconciles a single result message.
func (s *Service) handleMessage(ctx context.Context, msg *kafka.Message) {
	var result events.ResultMessage
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		s.log.Error("failed to decode result message",
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)),
			zap.Error(err))
		return
	}

	if result.EventID == "" {
		s.log.Warn("result message without event_id, skipping")
		return
	}

	event, err := s.resolver.ResolveLatestByReference(ctx, result.EventID)
	if errors.Is(err, store.ErrNotFound) {
		// A result can arrive for a record whose persistence lost the
		// race with the publish; benign, the record never existed here.
		s.log.Warn("no record found for result", zap.String("event_id", result.EventID))
		return
	}
	if err != nil {
		s.log.Error("failed to resolve record",
			zap.String("event_id", result.EventID),
			zap.Error(err))
		return
	}

	s.log.Info("record resolved",
		zap.String("event_id", result.EventID),
		zap.Uint("record_id", event.ID))
}

// Close shuts the consumer down after Run has returned.
func (s *Service) Close() error {
	return s.consumer.Close()
}
