// Package redis provides a Redis-based implementation of the metric store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"labwatch/internal/config"
	"labwatch/internal/domain"
)

// Key prefix for metric snapshots in Redis.
const prefixSnapshot = "snapshot:"

// MetricStore implements store.MetricStore using Redis.
type MetricStore struct {
	client *redis.Client
}

// NewMetricStore creates a new Redis-backed metric store.
func NewMetricStore(cfg *config.RedisConfig) (*MetricStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &MetricStore{client: client}, nil
}

// snapshotKey generates the Redis key for an item's snapshot.
func snapshotKey(itemID string) string {
	return prefixSnapshot + itemID
}

// Upsert stores or replaces the snapshot for an item.
func (s *MetricStore) Upsert(ctx context.Context, snap *domain.MetricSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// No TTL; snapshots persist until explicitly deleted or replaced.
	if err := s.client.Set(ctx, snapshotKey(snap.ItemID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

// Get retrieves the snapshot for an item.
func (s *MetricStore) Get(ctx context.Context, itemID string) (*domain.MetricSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(itemID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap domain.MetricSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// List returns all stored snapshots ordered by item ID.
func (s *MetricStore) List(ctx context.Context) ([]*domain.MetricSnapshot, error) {
	var snapshots []*domain.MetricSnapshot

	iter := s.client.Scan(ctx, 0, prefixSnapshot+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to get snapshot %s: %w", iter.Val(), err)
		}

		var snap domain.MetricSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", iter.Val(), err)
		}
		snapshots = append(snapshots, &snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ItemID < snapshots[j].ItemID
	})

	return snapshots, nil
}

// Delete removes the snapshot for an item.
func (s *MetricStore) Delete(ctx context.Context, itemID string) error {
	if err := s.client.Del(ctx, snapshotKey(itemID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *MetricStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
