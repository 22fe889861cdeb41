package memory

import (
	"context"
	"sort"
	"sync"

	"labwatch/internal/domain"
)

// MetricStore is an in-memory implementation of store.MetricStore.
// It holds the latest snapshot per item under an RWMutex.
type MetricStore struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.MetricSnapshot
}

// NewMetricStore creates a new in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{
		snapshots: make(map[string]*domain.MetricSnapshot),
	}
}

// Upsert stores or replaces the snapshot for its item.
func (s *MetricStore) Upsert(ctx context.Context, snapshot *domain.MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snapshot
	s.snapshots[snapshot.ItemID] = &cp
	return nil
}

// Get retrieves the snapshot for an item.
func (s *MetricStore) Get(ctx context.Context, itemID string) (*domain.MetricSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, exists := s.snapshots[itemID]
	if !exists {
		return nil, domain.ErrSnapshotNotFound
	}

	cp := *snapshot
	return &cp, nil
}

// List retrieves all current snapshots, ordered by item ID.
func (s *MetricStore) List(ctx context.Context) ([]*domain.MetricSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*domain.MetricSnapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		cp := *snapshot
		results = append(results, &cp)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ItemID < results[j].ItemID
	})

	return results, nil
}

// Delete removes an item's snapshot.
func (s *MetricStore) Delete(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, itemID)
	return nil
}

// Close releases resources. No-op for the in-memory store.
func (s *MetricStore) Close() error {
	return nil
}
