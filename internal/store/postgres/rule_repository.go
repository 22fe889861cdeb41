package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"labwatch/internal/domain"
)

// RuleRepository implements store.RuleRepository using PostgreSQL.
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new PostgreSQL-backed rule repository.
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create stores a new alert rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.AlertRule) error {
	conditions, channels, escalation, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alert_rules (
			id, name, description, type, conditions, severity,
			is_active, channels, escalation, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.Description),
		rule.Type,
		conditions,
		rule.Severity,
		rule.IsActive,
		channels,
		escalation,
		rule.CreatedAt,
		rule.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	return nil
}

// Update modifies an existing alert rule.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AlertRule) error {
	conditions, channels, escalation, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE alert_rules SET
			name = $2,
			description = $3,
			type = $4,
			conditions = $5,
			severity = $6,
			is_active = $7,
			channels = $8,
			escalation = $9,
			updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.Description),
		rule.Type,
		conditions,
		rule.Severity,
		rule.IsActive,
		channels,
		escalation,
		rule.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// GetByID retrieves a rule by its ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	query := ruleSelect + " WHERE id = $1"

	row := r.db.pool.QueryRow(ctx, query, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}

	return rule, nil
}

// List retrieves all rules, active or not.
func (r *RuleRepository) List(ctx context.Context) ([]*domain.AlertRule, error) {
	return r.list(ctx, ruleSelect+" ORDER BY created_at")
}

// ListActive retrieves only the rules eligible for evaluation.
func (r *RuleRepository) ListActive(ctx context.Context) ([]*domain.AlertRule, error) {
	return r.list(ctx, ruleSelect+" WHERE is_active ORDER BY created_at")
}

func (r *RuleRepository) list(ctx context.Context, query string) ([]*domain.AlertRule, error) {
	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rules: %w", err)
	}

	return rules, nil
}

const ruleSelect = `
	SELECT id, name, description, type, conditions, severity,
		   is_active, channels, escalation, created_at, updated_at
	FROM alert_rules
`

// scanRule scans a single row into an AlertRule.
func scanRule(row pgx.Row) (*domain.AlertRule, error) {
	var rule domain.AlertRule
	var description *string
	var conditions, channels, escalation []byte

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&description,
		&rule.Type,
		&conditions,
		&rule.Severity,
		&rule.IsActive,
		&channels,
		&escalation,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if description != nil {
		rule.Description = *description
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(channels, &rule.Channels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
	}
	if len(escalation) > 0 {
		if err := json.Unmarshal(escalation, &rule.Escalation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation: %w", err)
		}
	}

	return &rule, nil
}

// marshalRuleParts serializes the JSONB columns of a rule.
func marshalRuleParts(rule *domain.AlertRule) (conditions, channels, escalation []byte, err error) {
	conditions, err = json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}

	if rule.Channels == nil {
		channels = []byte("[]")
	} else {
		channels, err = json.Marshal(rule.Channels)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal channels: %w", err)
		}
	}

	if rule.Escalation != nil {
		escalation, err = json.Marshal(rule.Escalation)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal escalation: %w", err)
		}
	}

	return conditions, channels, escalation, nil
}
