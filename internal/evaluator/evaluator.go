// Package evaluator runs the periodic rule evaluation loop.
// On every tick it scans all metric snapshots against all active rules
// and raises alerts for matches through the alerting service.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"labwatch/internal/alerting"
	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/metrics"
	"labwatch/internal/store"
)

// Dispatcher delivers a freshly raised alert to the rule's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *domain.Alert, rule *domain.AlertRule)
}

// Evaluator periodically evaluates active rules against metric snapshots.
type Evaluator struct {
	rules      store.RuleRepository
	snapshots  store.MetricStore
	alerts     *alerting.Service
	dispatcher Dispatcher
	clock      clock.Clock
	interval   time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an evaluator. It does not start evaluating until Start is
// called.
func New(
	rules store.RuleRepository,
	snapshots store.MetricStore,
	alerts *alerting.Service,
	dispatcher Dispatcher,
	clk clock.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		rules:      rules,
		snapshots:  snapshots,
		alerts:     alerts,
		dispatcher: dispatcher,
		clock:      clk,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches the evaluation loop: one immediate pass, then one per
// interval. Calling Start on a running evaluator is a no-op.
func (e *Evaluator) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(ctx, e.done)

	e.logger.Info("evaluator started", "interval", e.interval)
}

// Stop halts the loop and waits for any in-flight pass to finish.
// Calling Stop on a stopped evaluator is a no-op. After Stop returns no
// further tick will mutate alert state.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	e.logger.Info("evaluator stopped")
}

func (e *Evaluator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	e.EvaluateAll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll runs a single pass over every snapshot and active rule.
// It is exported so callers can force a pass outside the timer, e.g.
// right after new metrics arrive.
func (e *Evaluator) EvaluateAll(ctx context.Context) {
	start := time.Now()

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.logger.Error("failed to list active rules", "error", err)
		return
	}

	snapshots, err := e.snapshots.List(ctx)
	if err != nil {
		e.logger.Error("failed to list metric snapshots", "error", err)
		return
	}

	now := e.clock.Now()
	for _, snap := range snapshots {
		for _, rule := range rules {
			// A cancelled context stops the pass mid-flight so shutdown
			// never races a late mutation.
			if ctx.Err() != nil {
				return
			}
			e.evaluate(ctx, rule, snap, now)
		}
	}

	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
}

// evaluate checks one rule against one snapshot and raises an alert on
// match. Deduplication against open alerts happens inside Raise.
func (e *Evaluator) evaluate(ctx context.Context, rule *domain.AlertRule, snap *domain.MetricSnapshot, now time.Time) {
	matched := matchRule(rule, snap, now)
	metrics.RuleEvaluationsTotal.WithLabelValues(rule.ID, fmt.Sprintf("%t", matched)).Inc()
	if !matched {
		return
	}

	alert := buildAlert(rule, snap, now)

	created, err := e.alerts.Raise(ctx, alert)
	if err != nil {
		e.logger.Error("failed to raise alert",
			"rule_id", rule.ID, "item_id", snap.ItemID, "error", err)
		return
	}
	if !created {
		return
	}

	e.dispatcher.Dispatch(ctx, alert, rule)
}

// matchRule reports whether every condition on the rule holds for the
// snapshot. A rule with no conditions never matches.
func matchRule(rule *domain.AlertRule, snap *domain.MetricSnapshot, now time.Time) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !matchCondition(cond, snap, now) {
			return false
		}
	}
	return true
}

// matchCondition applies a single comparison. Unknown operators evaluate
// to false rather than erroring, matching the silent-skip behavior of
// unknown field names.
func matchCondition(cond domain.AlertCondition, snap *domain.MetricSnapshot, now time.Time) bool {
	field := snap.Field(cond.Field, now)
	target := snap.ResolveValue(cond.Value, now)

	switch cond.Operator {
	case domain.OpLessThan:
		return field < target
	case domain.OpGreaterThan:
		return field > target
	case domain.OpEquals:
		return field == target
	case domain.OpNotEquals:
		return field != target
	case domain.OpBetween:
		upper := snap.ResolveValue(cond.SecondValue, now)
		return field >= target && field <= upper
	default:
		return false
	}
}

// buildAlert assembles the alert raised when a rule matches a snapshot.
func buildAlert(rule *domain.AlertRule, snap *domain.MetricSnapshot, now time.Time) *domain.Alert {
	current := snap.Field(rule.Conditions[0].Field, now)
	threshold := snap.ThresholdFor(rule.Type)
	if v := rule.Conditions[0].Value; v.Number != nil {
		threshold = *v.Number
	}

	return &domain.Alert{
		Type:         rule.Type,
		Severity:     rule.Severity,
		ItemID:       snap.ItemID,
		ItemName:     snap.ItemName,
		Category:     snap.Category,
		CurrentValue: current,
		Threshold:    threshold,
		Message:      alertMessage(rule.Type, snap, current, threshold),
		CreatedAt:    now,
		Actions:      domain.ActionsForType(rule.Type),
		Metadata:     map[string]string{"rule_id": rule.ID},
	}
}

// alertMessage renders the human-readable description for an alert,
// always including the observed value and the threshold it crossed.
func alertMessage(t domain.AlertType, snap *domain.MetricSnapshot, current, threshold float64) string {
	switch t {
	case domain.AlertTypeLowStock:
		return fmt.Sprintf("%s stock is low: %g units remaining (minimum %g)",
			snap.ItemName, current, threshold)
	case domain.AlertTypeCriticalStock:
		return fmt.Sprintf("%s stock is critically low: %g units remaining (safety stock %g)",
			snap.ItemName, current, threshold)
	case domain.AlertTypeOverstock:
		return fmt.Sprintf("%s is overstocked: %g units (maximum %g)",
			snap.ItemName, current, threshold)
	case domain.AlertTypeExpiryWarning:
		return fmt.Sprintf("%s expires in %g days (warning at %g)",
			snap.ItemName, current, threshold)
	case domain.AlertTypeExpired:
		return fmt.Sprintf("%s has expired (%g days past expiry)",
			snap.ItemName, -current)
	case domain.AlertTypeReorderPoint:
		return fmt.Sprintf("%s reached its reorder point: %g units (reorder at %g)",
			snap.ItemName, current, threshold)
	default:
		return fmt.Sprintf("%s: observed value %g crossed threshold %g",
			snap.ItemName, current, threshold)
	}
}
