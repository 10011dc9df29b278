// Package store is the relational record store for error events and
// their lifecycle status. It is the source of truth: ingestion always
// persists here regardless of broker availability.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("error event not found")

// Open connects to Postgres and applies pool settings.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Migrate creates or updates the error_events table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ErrorEvent{})
}

// EventRepository provides access to persisted error events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event row and fills in its assigned id.
func (r *EventRepository) Create(ctx context.Context, event *ErrorEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to persist error event: %w", err)
	}
	return nil
}

// List returns all events ordered by event-reported creation time,
// newest first. Rows without a parsed createdDate sort last.
func (r *EventRepository) List(ctx context.Context) ([]ErrorEvent, error) {
	var out []ErrorEvent
	err := r.db.WithContext(ctx).
		Order("created_date DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list error events: %w", err)
	}
	return out, nil
}

// GetByID returns a single event, ErrNotFound when the id is unknown.
func (r *EventRepository) GetByID(ctx context.Context, id uint) (*ErrorEvent, error) {
	var event ErrorEvent
	err := r.db.WithContext(ctx).First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch error event: %w", err)
	}
	return &event, nil
}

// ResolveLatestByReference marks the newest event carrying the given
// reference id as resolved. reference_id is not unique; ties break to
// the most recently ingested row (created_at, then id). Returns
// ErrNotFound when no row matches.
func (r *EventRepository) ResolveLatestByReference(ctx context.Context, referenceID string) (*ErrorEvent, error) {
	var event ErrorEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("reference_id = ?", referenceID).
			Order("created_at DESC").
			Order("id DESC").
			First(&event).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&event).Update("status", StatusResolved).Error; err != nil {
			return fmt.Errorf("failed to update error status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
