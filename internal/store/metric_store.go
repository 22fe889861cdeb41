package store

import (
	"context"

	"labwatch/internal/domain"
)

// MetricStore holds the current metric snapshot per monitored item.
// Snapshots are written by the feed service when refreshes arrive and
// read by the evaluator on every pass. All methods must be safe for
// concurrent use.
type MetricStore interface {
	// Upsert stores or replaces the snapshot for its item.
	Upsert(ctx context.Context, snapshot *domain.MetricSnapshot) error

	// Get retrieves the snapshot for an item.
	// Returns domain.ErrSnapshotNotFound if the item is unknown.
	Get(ctx context.Context, itemID string) (*domain.MetricSnapshot, error)

	// List retrieves all current snapshots.
	List(ctx context.Context) ([]*domain.MetricSnapshot, error)

	// Delete removes an item's snapshot.
	Delete(ctx context.Context, itemID string) error

	// Close releases any resources held by the store.
	Close() error
}
