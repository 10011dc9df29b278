package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, key []byte, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, event *store.ErrorEvent) error {
	args := m.Called(ctx, event)
	if args.Error(0) == nil {
		event.ID = 42
	}
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func TestIngest_PublishesAndPersists(t *testing.T) {
	pub := new(mockPublisher)
	repo := new(mockRepository)
	svc := NewService(pub, repo, "error_events", zap.NewNop())

	pub.On("Publish", mock.Anything, "error_events", []byte("REF-1"), mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	payload := events.ErrorPayload{
		Message:     strPtr("boom"),
		ReferenceID: strPtr("REF-1"),
	}

	event, err := svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, uint(42), event.ID)
	assert.Equal(t, store.StatusProcessing, event.Status)
	require.NotNil(t, event.ReferenceID)
	assert.Equal(t, "REF-1", *event.ReferenceID)

	pub.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestIngest_SanitizesBeforePersisting(t *testing.T) {
	pub := new(mockPublisher)
	repo := new(mockRepository)
	svc := NewService(pub, repo, "error_events", zap.NewNop())

	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *store.ErrorEvent) bool {
		return e.Message != nil && *e.Message == "user [EMAIL] failed"
	})).Return(nil)

	_, err := svc.Ingest(context.Background(), events.ErrorPayload{
		Message: strPtr("user a@b.com failed"),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIngest_PublishFailureStillPersists(t *testing.T) {
	pub := new(mockPublisher)
	repo := new(mockRepository)
	svc := NewService(pub, repo, "error_events", zap.NewNop())

	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker unreachable"))
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	event, err := svc.Ingest(context.Background(), events.ErrorPayload{
		Message: strPtr("boom"),
	})
	require.NoError(t, err)
	assert.NotZero(t, event.ID)

	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestIngest_PersistenceFailureFailsCall(t *testing.T) {
	pub := new(mockPublisher)
	repo := new(mockRepository)
	svc := NewService(pub, repo, "error_events", zap.NewNop())

	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	event, err := svc.Ingest(context.Background(), events.ErrorPayload{
		Message: strPtr("boom"),
	})
	require.Error(t, err)
	assert.Nil(t, event)
}

func TestIngest_NoReferenceIDPublishesNilKey(t *testing.T) {
	pub := new(mockPublisher)
	repo := new(mockRepository)
	svc := NewService(pub, repo, "error_events", zap.NewNop())

	pub.On("Publish", mock.Anything, "error_events", []byte(nil), mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Ingest(context.Background(), events.ErrorPayload{Message: strPtr("boom")})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}
