// Package memory provides in-memory implementations of store interfaces.
// These are useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sort"
	"sync"

	"labwatch/internal/domain"
)

// AlertRepository is an in-memory implementation of store.AlertRepository.
// It stores alerts in a map by ID, with an open-alert index keyed by
// (item, type) to enforce fast duplicate lookups.
type AlertRepository struct {
	mu sync.RWMutex

	// alerts stores all alerts by ID
	alerts map[string]*domain.Alert

	// open indexes the single unresolved alert per "itemID|type"
	open map[string]*domain.Alert
}

// NewAlertRepository creates a new in-memory alert repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts: make(map[string]*domain.Alert),
		open:   make(map[string]*domain.Alert),
	}
}

// openKey generates the index key for the open-alert lookup.
func openKey(itemID string, alertType domain.AlertType) string {
	return itemID + "|" + string(alertType)
}

// copyAlert returns a deep-enough copy: actions and metadata are cloned
// so callers cannot mutate stored state through returned slices.
func copyAlert(a *domain.Alert) *domain.Alert {
	cp := *a
	if a.Actions != nil {
		cp.Actions = make([]domain.AlertAction, len(a.Actions))
		copy(cp.Actions, a.Actions)
	}
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Create stores a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyAlert(alert)
	r.alerts[alert.ID] = stored
	if stored.IsOpen() {
		r.open[openKey(stored.ItemID, stored.Type)] = stored
	}

	return nil
}

// Update modifies an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[alert.ID]; !exists {
		return domain.ErrAlertNotFound
	}

	stored := copyAlert(alert)
	r.alerts[alert.ID] = stored

	key := openKey(stored.ItemID, stored.Type)
	if stored.IsOpen() {
		r.open[key] = stored
	} else if existing, ok := r.open[key]; ok && existing.ID == stored.ID {
		delete(r.open, key)
	}

	return nil
}

// GetByID retrieves an alert by its ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, exists := r.alerts[id]
	if !exists {
		return nil, domain.ErrAlertNotFound
	}

	return copyAlert(alert), nil
}

// FindOpen retrieves the unresolved alert for an (item, type) pair.
// Returns nil, nil if no open alert exists.
func (r *AlertRepository) FindOpen(ctx context.Context, itemID string, alertType domain.AlertType) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, exists := r.open[openKey(itemID, alertType)]
	if !exists {
		return nil, nil
	}

	return copyAlert(alert), nil
}

// List retrieves alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Alert

	for _, alert := range r.alerts {
		if filter.ItemID != "" && alert.ItemID != filter.ItemID {
			continue
		}
		if filter.Type != "" && alert.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if filter.Open && alert.IsResolved {
			continue
		}
		if filter.Unread && alert.IsRead {
			continue
		}
		results = append(results, copyAlert(alert))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	// Apply pagination after sorting
	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return nil, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}

	return results, nil
}

// DeleteAll removes every alert.
func (r *AlertRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = make(map[string]*domain.Alert)
	r.open = make(map[string]*domain.Alert)
	return nil
}
