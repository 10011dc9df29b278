package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewEventRepository(db)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestCreate_AssignsIDAndDefaults(t *testing.T) {
	repo := newTestRepo(t)

	event := &ErrorEvent{
		Source:  strPtr("checkout"),
		Message: strPtr("boom"),
		Status:  StatusProcessing,
	}
	require.NoError(t, repo.Create(context.Background(), event))

	assert.NotZero(t, event.ID)
	assert.Equal(t, StatusProcessing, event.Status)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestGetByID(t *testing.T) {
	repo := newTestRepo(t)

	event := &ErrorEvent{Message: strPtr("boom"), Status: StatusProcessing}
	require.NoError(t, repo.Create(context.Background(), event))

	got, err := repo.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	require.NotNil(t, got.Message)
	assert.Equal(t, "boom", *got.Message)
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrdersByEventTimeNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := &ErrorEvent{
		Message:     strPtr("old"),
		CreatedDate: timePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Status:      StatusProcessing,
	}
	recent := &ErrorEvent{
		Message:     strPtr("recent"),
		CreatedDate: timePtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Status:      StatusProcessing,
	}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	events, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "recent", *events[0].Message)
	assert.Equal(t, "old", *events[1].Message)
}

func TestResolveLatestByReference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := &ErrorEvent{
		ReferenceID: strPtr("REF-1"),
		Status:      StatusProcessing,
	}
	require.NoError(t, repo.Create(ctx, event))

	resolved, err := repo.ResolveLatestByReference(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, event.ID, resolved.ID)

	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
}

func TestResolveLatestByReference_PicksNewestRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := &ErrorEvent{
		ReferenceID: strPtr("REF-1"),
		Message:     strPtr("first"),
		Status:      StatusProcessing,
		CreatedAt:   base,
	}
	second := &ErrorEvent{
		ReferenceID: strPtr("REF-1"),
		Message:     strPtr("second"),
		Status:      StatusProcessing,
		CreatedAt:   base.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	resolved, err := repo.ResolveLatestByReference(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, resolved.ID)

	untouched, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, untouched.Status)
}

func TestResolveLatestByReference_TieBreaksByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &ErrorEvent{ReferenceID: strPtr("REF-1"), Status: StatusProcessing, CreatedAt: ts}
	b := &ErrorEvent{ReferenceID: strPtr("REF-1"), Status: StatusProcessing, CreatedAt: ts}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	resolved, err := repo.ResolveLatestByReference(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, resolved.ID)
}

func TestResolveLatestByReference_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.ResolveLatestByReference(context.Background(), "REF-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}
