package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"labwatch/internal/domain"
)

// AlertRepository implements store.AlertRepository using PostgreSQL.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new PostgreSQL-backed alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create stores a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	actions, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	metadata, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (
			id, type, severity, item_id, item_name, category,
			current_value, threshold, message, is_read, is_resolved,
			resolved_by, resolved_at, actions, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.pool.Exec(ctx, query,
		alert.ID,
		alert.Type,
		alert.Severity,
		alert.ItemID,
		alert.ItemName,
		nullableString(alert.Category),
		alert.CurrentValue,
		alert.Threshold,
		alert.Message,
		alert.IsRead,
		alert.IsResolved,
		nullableString(alert.ResolvedBy),
		alert.ResolvedAt,
		actions,
		metadata,
		alert.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// Update modifies an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	metadata, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE alerts SET
			is_read = $2,
			is_resolved = $3,
			resolved_by = $4,
			resolved_at = $5,
			message = $6,
			metadata = $7
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		alert.ID,
		alert.IsRead,
		alert.IsResolved,
		nullableString(alert.ResolvedBy),
		alert.ResolvedAt,
		alert.Message,
		metadata,
	)

	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}

	return nil
}

// GetByID retrieves an alert by its database ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	query := alertSelect + " WHERE id = $1"

	row := r.db.pool.QueryRow(ctx, query, id)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// FindOpen retrieves the unresolved alert for the given item and alert
// type. Returns (nil, nil) when no open alert exists; at most one can,
// by the partial unique index.
func (r *AlertRepository) FindOpen(ctx context.Context, itemID string, alertType domain.AlertType) (*domain.Alert, error) {
	query := alertSelect + " WHERE item_id = $1 AND type = $2 AND NOT is_resolved"

	row := r.db.pool.QueryRow(ctx, query, itemID, alertType)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}

	return alert, nil
}

// List retrieves alerts matching the filter criteria, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	query := alertSelect + " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.ItemID != "" {
		query += fmt.Sprintf(" AND item_id = $%d", argNum)
		args = append(args, filter.ItemID)
		argNum++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, filter.Type)
		argNum++
	}

	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, filter.Severity)
		argNum++
	}

	if filter.Open {
		query += " AND NOT is_resolved"
	}

	if filter.Unread {
		query += " AND NOT is_read"
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// DeleteAll removes every alert.
func (r *AlertRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, "DELETE FROM alerts"); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

const alertSelect = `
	SELECT id, type, severity, item_id, item_name, category,
		   current_value, threshold, message, is_read, is_resolved,
		   resolved_by, resolved_at, actions, metadata, created_at
	FROM alerts
`

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var alert domain.Alert
	var category, resolvedBy *string
	var actions, metadata []byte

	err := row.Scan(
		&alert.ID,
		&alert.Type,
		&alert.Severity,
		&alert.ItemID,
		&alert.ItemName,
		&category,
		&alert.CurrentValue,
		&alert.Threshold,
		&alert.Message,
		&alert.IsRead,
		&alert.IsResolved,
		&resolvedBy,
		&alert.ResolvedAt,
		&actions,
		&metadata,
		&alert.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	if category != nil {
		alert.Category = *category
	}
	if resolvedBy != nil {
		alert.ResolvedBy = *resolvedBy
	}
	if err := json.Unmarshal(actions, &alert.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &alert, nil
}

// scanAlerts scans multiple rows into a slice of Alerts.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// marshalMetadata serializes alert metadata, mapping empty to NULL.
func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// nullableString returns nil if the string is empty, otherwise returns a pointer to it.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
