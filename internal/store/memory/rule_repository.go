package memory

import (
	"context"
	"sort"
	"sync"

	"labwatch/internal/domain"
)

// RuleRepository is an in-memory implementation of store.RuleRepository.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.AlertRule
}

// NewRuleRepository creates a new in-memory rule repository.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		rules: make(map[string]*domain.AlertRule),
	}
}

// copyRule clones a rule including its conditions, channels and escalation
// so callers cannot mutate stored state.
func copyRule(r *domain.AlertRule) *domain.AlertRule {
	cp := *r
	if r.Conditions != nil {
		cp.Conditions = make([]domain.AlertCondition, len(r.Conditions))
		copy(cp.Conditions, r.Conditions)
	}
	if r.Channels != nil {
		cp.Channels = make([]domain.NotificationChannel, len(r.Channels))
		copy(cp.Channels, r.Channels)
	}
	if r.Escalation != nil {
		esc := *r.Escalation
		esc.Levels = make([]domain.EscalationLevel, len(r.Escalation.Levels))
		copy(esc.Levels, r.Escalation.Levels)
		cp.Escalation = &esc
	}
	return &cp
}

// Create stores a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// Update modifies an existing rule.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; !exists {
		return domain.ErrRuleNotFound
	}

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// GetByID retrieves a rule by its ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return nil, domain.ErrRuleNotFound
	}

	return copyRule(rule), nil
}

// List retrieves all rules, ordered by creation time.
func (r *RuleRepository) List(ctx context.Context) ([]*domain.AlertRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.AlertRule, 0, len(r.rules))
	for _, rule := range r.rules {
		results = append(results, copyRule(rule))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	return results, nil
}

// ListActive retrieves only rules eligible for evaluation.
func (r *RuleRepository) ListActive(ctx context.Context) ([]*domain.AlertRule, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, rule := range all {
		if rule.IsActive {
			active = append(active, rule)
		}
	}

	return active, nil
}
