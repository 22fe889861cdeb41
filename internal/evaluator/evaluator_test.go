package evaluator

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"labwatch/internal/alerting"
	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/store/memory"
)

// nopDispatcher records dispatched alerts without delivering anything.
type nopDispatcher struct {
	dispatched []*domain.Alert
}

func (d *nopDispatcher) Dispatch(_ context.Context, alert *domain.Alert, _ *domain.AlertRule) {
	d.dispatched = append(d.dispatched, alert)
}

type fixture struct {
	evaluator  *Evaluator
	alerts     *alerting.Service
	rules      *memory.RuleRepository
	snapshots  *memory.MetricStore
	dispatcher *nopDispatcher
	clock      *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	alerts := alerting.NewService(memory.NewAlertRepository(), clk, logger)
	rules := memory.NewRuleRepository()
	snapshots := memory.NewMetricStore()
	dispatcher := &nopDispatcher{}

	return &fixture{
		evaluator:  New(rules, snapshots, alerts, dispatcher, clk, 30*time.Second, logger),
		alerts:     alerts,
		rules:      rules,
		snapshots:  snapshots,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

func lowStockRule() *domain.AlertRule {
	return &domain.AlertRule{
		ID:       "rule-low-stock",
		Name:     "Low Stock Alert",
		Type:     domain.AlertTypeLowStock,
		Severity: domain.SeverityMedium,
		IsActive: true,
		Conditions: []domain.AlertCondition{
			{Field: "currentStock", Operator: domain.OpLessThan, Value: domain.FieldRef("minLevel")},
		},
	}
}

func dmemSnapshot(stock float64) *domain.MetricSnapshot {
	return &domain.MetricSnapshot{
		ItemID:       "item-1",
		ItemName:     "DMEM Medium",
		Category:     "Culture Media",
		CurrentStock: stock,
		MinLevel:     1000,
		SafetyStock:  500,
	}
}

func TestEvaluateAll_RaisesOnMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, lowStockRule())
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(750))

	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Type != domain.AlertTypeLowStock {
		t.Errorf("Type = %s, want LOW_STOCK", a.Type)
	}
	if a.CurrentValue != 750 || a.Threshold != 1000 {
		t.Errorf("CurrentValue/Threshold = %g/%g, want 750/1000", a.CurrentValue, a.Threshold)
	}
	if !strings.Contains(a.Message, "750") || !strings.Contains(a.Message, "1000") {
		t.Errorf("message should contain current and threshold values, got %q", a.Message)
	}
	if a.Metadata["rule_id"] != "rule-low-stock" {
		t.Errorf("rule_id metadata = %q", a.Metadata["rule_id"])
	}
	if a.FindAction("create-po") == nil {
		t.Error("stock alert should carry a create-po action")
	}

	if len(f.dispatcher.dispatched) != 1 {
		t.Errorf("got %d dispatches, want 1", len(f.dispatcher.dispatched))
	}
}

func TestEvaluateAll_ExpiryAlertReportsRuleBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, &domain.AlertRule{
		ID:       "rule-expiry",
		Name:     "Expiry Warning",
		Type:     domain.AlertTypeExpiryWarning,
		Severity: domain.SeverityMedium,
		IsActive: true,
		Conditions: []domain.AlertCondition{
			{Field: "daysToExpiry", Operator: domain.OpLessThan, Value: domain.Literal(30)},
		},
	})

	snap := dmemSnapshot(2000)
	expiry := f.clock.Now().Add(12 * 24 * time.Hour)
	snap.ExpiryDate = &expiry
	_ = f.snapshots.Upsert(ctx, snap)

	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.CurrentValue != 12 || a.Threshold != 30 {
		t.Errorf("CurrentValue/Threshold = %g/%g, want 12/30", a.CurrentValue, a.Threshold)
	}
	if !strings.Contains(a.Message, "expires in 12 days") || !strings.Contains(a.Message, "warning at 30") {
		t.Errorf("message should report the rule's day bound, got %q", a.Message)
	}
}

func TestEvaluateAll_NoMatchNoAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, lowStockRule())
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(1500))

	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(alerts) != 0 {
		t.Errorf("got %d alerts, want 0", len(alerts))
	}
}

func TestEvaluateAll_RepeatPassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, lowStockRule())
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(750))

	f.evaluator.EvaluateAll(ctx)
	f.evaluator.EvaluateAll(ctx)
	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(alerts) != 1 {
		t.Errorf("got %d alerts after repeated passes, want 1", len(alerts))
	}
	if len(f.dispatcher.dispatched) != 1 {
		t.Errorf("got %d dispatches, want 1", len(f.dispatcher.dispatched))
	}
}

func TestEvaluateAll_ResolvedAlertIsReRaised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, lowStockRule())
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(750))

	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if err := f.alerts.Resolve(ctx, alerts[0].ID, "dr.chen"); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	// Condition still holds on the next pass, so exactly one new alert
	// is raised into the freed slot.
	f.evaluator.EvaluateAll(ctx)

	all, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(all) != 2 {
		t.Fatalf("got %d alerts total, want 2", len(all))
	}
	open, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{Open: true})
	if len(open) != 1 {
		t.Errorf("got %d open alerts, want 1", len(open))
	}
}

func TestEvaluateAll_InactiveRuleSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rule := lowStockRule()
	rule.IsActive = false
	_ = f.rules.Create(ctx, rule)
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(750))

	f.evaluator.EvaluateAll(ctx)

	alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	if len(alerts) != 0 {
		t.Errorf("inactive rule raised %d alerts, want 0", len(alerts))
	}
}

func TestMatchCondition(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	snap := dmemSnapshot(750)

	tests := []struct {
		name string
		cond domain.AlertCondition
		want bool
	}{
		{
			name: "less than literal true",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpLessThan, Value: domain.Literal(1000)},
			want: true,
		},
		{
			name: "less than literal false",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpLessThan, Value: domain.Literal(500)},
			want: false,
		},
		{
			name: "field reference",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpLessThan, Value: domain.FieldRef("minLevel")},
			want: true,
		},
		{
			name: "greater than",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpGreaterThan, Value: domain.FieldRef("safetyStock")},
			want: true,
		},
		{
			name: "equals",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpEquals, Value: domain.Literal(750)},
			want: true,
		},
		{
			name: "not equals",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpNotEquals, Value: domain.Literal(750)},
			want: false,
		},
		{
			name: "between inclusive lower bound",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpBetween, Value: domain.Literal(750), SecondValue: domain.Literal(800)},
			want: true,
		},
		{
			name: "between inclusive upper bound",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpBetween, Value: domain.Literal(700), SecondValue: domain.Literal(750)},
			want: true,
		},
		{
			name: "between outside",
			cond: domain.AlertCondition{Field: "currentStock", Operator: domain.OpBetween, Value: domain.Literal(100), SecondValue: domain.Literal(200)},
			want: false,
		},
		{
			name: "unknown operator is false",
			cond: domain.AlertCondition{Field: "currentStock", Operator: "LIKE", Value: domain.Literal(750)},
			want: false,
		},
		{
			name: "unknown field reads as zero",
			cond: domain.AlertCondition{Field: "nonsense", Operator: domain.OpEquals, Value: domain.Literal(0)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchCondition(tt.cond, snap, now); got != tt.want {
				t.Errorf("matchCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.rules.Create(ctx, lowStockRule())
	_ = f.snapshots.Upsert(ctx, dmemSnapshot(750))

	f.evaluator.Start(ctx)
	f.evaluator.Start(ctx) // second Start is a no-op

	// The immediate first pass runs asynchronously; wait for it.
	deadline := time.After(2 * time.Second)
	for {
		alerts, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
		if len(alerts) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for first pass, have %d alerts", len(alerts))
		case <-time.After(10 * time.Millisecond):
		}
	}

	f.evaluator.Stop()
	f.evaluator.Stop() // second Stop is a no-op

	// No pass may mutate state after Stop returns.
	resolved, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{})
	_ = f.alerts.Resolve(ctx, resolved[0].ID, "dr.chen")
	time.Sleep(50 * time.Millisecond)

	open, _ := f.alerts.GetAlerts(ctx, domain.AlertFilter{Open: true})
	if len(open) != 0 {
		t.Errorf("evaluator mutated state after Stop: %d open alerts", len(open))
	}
}
