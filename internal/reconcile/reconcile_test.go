package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

type fakeConsumer struct {
	mu         sync.Mutex
	queue      chan *kafka.Message
	subscribed string
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{queue: make(chan *kafka.Message, 16)}
}

func (c *fakeConsumer) Subscribe(topic string, _ kafka.RebalanceCb) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topic
	return nil
}

func (c *fakeConsumer) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	select {
	case msg := <-c.queue:
		return msg, nil
	case <-time.After(timeout):
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
}

func (c *fakeConsumer) Close() error { return nil }

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveLatestByReference(ctx context.Context, referenceID string) (*store.ErrorEvent, error) {
	args := m.Called(ctx, referenceID)
	if ev := args.Get(0); ev != nil {
		return ev.(*store.ErrorEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			ResultsTopic:    "orchestrator_results",
			ReconcilerGroup: "result-reconcilers",
		},
	}
}

func resultMsg(value string) *kafka.Message {
	topic := "orchestrator_results"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 3},
		Value:          []byte(value),
	}
}

func TestHandleMessage_ResolvesMatchingRecord(t *testing.T) {
	resolver := new(mockResolver)
	svc := NewService(testConfig(), newFakeConsumer(), resolver, zap.NewNop())

	resolver.On("ResolveLatestByReference", mock.Anything, "REF-1").
		Return(&store.ErrorEvent{ID: 42, Status: store.StatusResolved}, nil)

	svc.handleMessage(context.Background(), resultMsg(`{"event_id":"REF-1","result":{"action":"retry"}}`))

	resolver.AssertExpectations(t)
}

func TestHandleMessage_DecodeFailureSkipped(t *testing.T) {
	resolver := new(mockResolver)
	svc := NewService(testConfig(), newFakeConsumer(), resolver, zap.NewNop())

	svc.handleMessage(context.Background(), resultMsg(`not json`))

	resolver.AssertNotCalled(t, "ResolveLatestByReference", mock.Anything, mock.Anything)
}

func TestHandleMessage_MissingEventIDSkipped(t *testing.T) {
	resolver := new(mockResolver)
	svc := NewService(testConfig(), newFakeConsumer(), resolver, zap.NewNop())

	svc.handleMessage(context.Background(), resultMsg(`{"result":{"action":"retry"}}`))
	svc.handleMessage(context.Background(), resultMsg(`{"event_id":"","result":null}`))

	resolver.AssertNotCalled(t, "ResolveLatestByReference", mock.Anything, mock.Anything)
}

func TestHandleMessage_UnknownReferenceIsBenign(t *testing.T) {
	resolver := new(mockResolver)
	svc := NewService(testConfig(), newFakeConsumer(), resolver, zap.NewNop())

	resolver.On("ResolveLatestByReference", mock.Anything, "REF-MISSING").
		Return(nil, store.ErrNotFound)

	svc.handleMessage(context.Background(), resultMsg(`{"event_id":"REF-MISSING"}`))

	resolver.AssertExpectations(t)
}

func TestHandleMessage_StoreFailureDoesNotPanic(t *testing.T) {
	resolver := new(mockResolver)
	svc := NewService(testConfig(), newFakeConsumer(), resolver, zap.NewNop())

	resolver.On("ResolveLatestByReference", mock.Anything, "REF-1").
		Return(nil, assert.AnError)

	assert.NotPanics(t, func() {
		svc.handleMessage(context.Background(), resultMsg(`{"event_id":"REF-1"}`))
	})
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	consumer := newFakeConsumer()
	resolver := new(mockResolver)
	svc := NewService(testConfig(), consumer, resolver, zap.NewNop())

	resolved := make(chan struct{})
	resolver.On("ResolveLatestByReference", mock.Anything, "REF-1").
		Run(func(mock.Arguments) { close(resolved) }).
		Return(&store.ErrorEvent{ID: 1}, nil)

	consumer.queue <- resultMsg(`{"event_id":"REF-1"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-resolved:
	case <-time.After(5 * time.Second):
		t.Fatal("message was never reconciled")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}

	assert.Equal(t, "orchestrator_results", consumer.subscribed)
}
