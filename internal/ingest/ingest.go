// Package ingest receives validated error payloads, normalizes them,
// best-effort publishes them to the inbound topic and unconditionally
// persists them. The store is the source of truth; the broker is only
// a delivery accelerator.
package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
	"github.com/Err-Tools/error-remediation-pipeline/internal/sanitize"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

// Publisher sends a JSON value to a topic with acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
}

// Repository persists normalized events.
type Repository interface {
	Create(ctx context.Context, event *store.ErrorEvent) error
}

// Service implements the ingestion pipeline.
type Service struct {
	publisher Publisher
	repo      Repository
	topic     string
	log       *zap.Logger
}

func NewService(publisher Publisher, repo Repository, topic string, log *zap.Logger) *Service {
	return &Service{
		publisher: publisher,
		repo:      repo,
		topic:     topic,
		log:       log,
	}
}

// Ingest normalizes the payload, publishes it keyed by referenceId and
// persists it with status processing. A publish failure is logged and
// swallowed; a persistence failure fails the call. Exactly one record
// is written per successful call regardless of broker availability.
func (s *Service) Ingest(ctx context.Context, payload events.ErrorPayload) (*store.ErrorEvent, error) {
	normalized := sanitize.Normalize(payload, s.log)

	if err := s.publisher.Publish(ctx, s.topic, normalized.Key(), normalized); err != nil {
		s.log.Warn("kafka publish failed, continuing with persistence",
			zap.String("topic", s.topic),
			zap.Error(err))
	}

	event := &store.ErrorEvent{
		Source:       normalized.Source,
		Function:     normalized.Function,
		Message:      normalized.Message,
		MessageShort: normalized.MessageShort,
		ReferenceID:  normalized.ReferenceID,
		StackTrace:   normalized.StackTrace,
		LogCode:      normalized.LogCode,
		CreatedDate:  normalized.CreatedDate,
		Status:       store.StatusProcessing,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.log.Info("persisted error event",
		zap.Uint("id", event.ID),
		zap.Stringp("reference_id", event.ReferenceID))
	return event, nil
}
