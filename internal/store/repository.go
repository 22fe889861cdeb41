// Package store defines interfaces for data persistence and state management.
// These abstractions allow swapping implementations (PostgreSQL, Redis,
// in-memory) without changing business logic.
package store

import (
	"context"

	"labwatch/internal/domain"
)

// AlertRepository defines the interface for alert storage.
// Implementations must return copies; callers may mutate results freely
// without affecting stored state.
type AlertRepository interface {
	// Create stores a new alert.
	Create(ctx context.Context, alert *domain.Alert) error

	// Update modifies an existing alert.
	Update(ctx context.Context, alert *domain.Alert) error

	// GetByID retrieves an alert by its ID.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)

	// FindOpen retrieves the unresolved alert for an (item, type) pair.
	// Returns nil, nil when no open alert exists; at most one can.
	FindOpen(ctx context.Context, itemID string, alertType domain.AlertType) (*domain.Alert, error)

	// List retrieves alerts matching the filter, newest first.
	List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error)

	// DeleteAll removes every alert. Used by the explicit clear-all
	// operation only; individual alerts are never hard-deleted.
	DeleteAll(ctx context.Context) error
}

// RuleRepository defines the interface for alert rule persistence.
type RuleRepository interface {
	// Create stores a new rule.
	Create(ctx context.Context, rule *domain.AlertRule) error

	// Update modifies an existing rule.
	Update(ctx context.Context, rule *domain.AlertRule) error

	// GetByID retrieves a rule by its ID.
	GetByID(ctx context.Context, id string) (*domain.AlertRule, error)

	// List retrieves all rules, active and inactive.
	List(ctx context.Context) ([]*domain.AlertRule, error)

	// ListActive retrieves only rules eligible for evaluation.
	ListActive(ctx context.Context) ([]*domain.AlertRule, error)
}
