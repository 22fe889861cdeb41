// Package alerting owns the alert store.
// It is the single writer for alert state: the evaluator raises alerts
// through it, the API mutates alerts through it, and subscribers receive
// a fresh snapshot after every change, in mutation order.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/metrics"
	"labwatch/internal/store"
)

// Service coordinates all alert mutations and reads.
type Service struct {
	repo   store.AlertRepository
	clock  clock.Clock
	logger *slog.Logger

	// mu serializes mutations and the subsequent fan-out so every
	// subscriber observes snapshots in the same order the mutations
	// happened.
	mu      sync.Mutex
	subs    map[int]func([]*domain.Alert)
	nextSub int
}

// NewService creates a new alerting service.
func NewService(repo store.AlertRepository, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		clock:  clk,
		logger: logger,
		subs:   make(map[int]func([]*domain.Alert)),
	}
}

// Raise creates a new alert unless an unresolved alert of the same type
// already exists for the same item. Returns true if an alert was created.
func (s *Service) Raise(ctx context.Context, alert *domain.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.FindOpen(ctx, alert.ItemID, alert.Type)
	if err != nil {
		return false, fmt.Errorf("failed to check for open alert: %w", err)
	}
	if existing != nil {
		s.logger.Debug("suppressed duplicate alert",
			"item_id", alert.ItemID,
			"type", alert.Type,
			"existing_id", existing.ID,
		)
		return false, nil
	}

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = s.clock.Now()
	}
	if len(alert.Actions) == 0 {
		alert.Actions = domain.ActionsForType(alert.Type)
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()

	s.logger.Info("alert raised",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"item_id", alert.ItemID,
	)

	s.fanOut(ctx)
	return true, nil
}

// MarkRead flags an alert as seen.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	alert.MarkRead()
	if err := s.repo.Update(ctx, alert); err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}

	s.fanOut(ctx)
	return nil
}

// Resolve closes an alert, recording who resolved it and when.
// A resolved alert's (item, type) slot is freed, so the evaluator may
// raise a fresh alert for the same condition on its next pass.
func (s *Service) Resolve(ctx context.Context, id, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolveLocked(ctx, id, by)
}

func (s *Service) resolveLocked(ctx context.Context, id, by string) error {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if alert.IsResolved {
		return nil
	}

	alert.Resolve(by, s.clock.Now())
	if err := s.repo.Update(ctx, alert); err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	metrics.AlertsResolvedTotal.WithLabelValues(string(alert.Type)).Inc()

	s.logger.Info("alert resolved", "alert_id", id, "resolved_by", by)

	s.fanOut(ctx)
	return nil
}

// ExecuteAction runs one of the actions attached to an alert. Returns
// false when the alert or action does not exist; nothing is mutated and
// subscribers are not notified in that case.
func (s *Service) ExecuteAction(ctx context.Context, id, actionID string, params map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("action on unknown alert", "alert_id", id, "action_id", actionID)
		metrics.AlertActionsTotal.WithLabelValues("unknown", "failure").Inc()
		return false
	}

	action := alert.FindAction(actionID)
	if action == nil {
		s.logger.Warn("unknown alert action", "alert_id", id, "action_id", actionID)
		metrics.AlertActionsTotal.WithLabelValues("unknown", "failure").Inc()
		return false
	}

	actor := params["actor"]
	if actor == "" {
		actor = "system"
	}

	switch action.Kind {
	case domain.ActionMarkRead:
		alert.MarkRead()
		if err := s.repo.Update(ctx, alert); err != nil {
			s.logger.Error("failed to persist mark-read action", "alert_id", id, "error", err)
			metrics.AlertActionsTotal.WithLabelValues(string(action.Kind), "failure").Inc()
			return false
		}
		s.fanOut(ctx)

	case domain.ActionCreatePurchaseOrder:
		// Purchase order creation is handled by the procurement system;
		// here we only record the request.
		s.logger.Info("purchase order requested",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)

	case domain.ActionAdjustLevels:
		s.logger.Info("stock level adjustment requested",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)

	case domain.ActionMarkClearance:
		s.logger.Info("item marked for clearance",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)

	case domain.ActionExtendExpiry:
		s.logger.Info("expiry extension requested",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)

	case domain.ActionReturnToSupplier:
		s.logger.Info("supplier return requested",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)

	case domain.ActionTransferLocation:
		s.logger.Info("location transfer requested",
			"alert_id", id, "item_id", alert.ItemID, "actor", actor)
	}

	// Terminal actions close the alert once their side effect is recorded.
	if action.Kind.IsTerminal() {
		if err := s.resolveLocked(ctx, id, actor); err != nil {
			s.logger.Error("failed to resolve after action", "alert_id", id, "error", err)
			metrics.AlertActionsTotal.WithLabelValues(string(action.Kind), "failure").Inc()
			return false
		}
	}

	metrics.AlertActionsTotal.WithLabelValues(string(action.Kind), "success").Inc()
	return true
}

// GetAlerts returns alerts matching the filter, newest first.
func (s *Service) GetAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	return s.repo.List(ctx, filter)
}

// GetAlert returns a single alert by ID.
func (s *Service) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUnreadAlerts returns unresolved alerts not yet seen by a user.
func (s *Service) GetUnreadAlerts(ctx context.Context) ([]*domain.Alert, error) {
	return s.repo.List(ctx, domain.AlertFilter{Unread: true, Open: true})
}

// GetCriticalAlerts returns unresolved critical alerts.
func (s *Service) GetCriticalAlerts(ctx context.Context) ([]*domain.Alert, error) {
	return s.repo.List(ctx, domain.AlertFilter{Severity: domain.SeverityCritical, Open: true})
}

// ClearAll removes every alert.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}

	s.logger.Info("all alerts cleared")

	s.fanOut(ctx)
	return nil
}

// Subscribe registers a callback invoked with the full alert list after
// every mutation. The current snapshot is delivered synchronously before
// Subscribe returns. The returned function removes the subscription.
func (s *Service) Subscribe(fn func([]*domain.Alert)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	metrics.AlertSubscribers.Set(float64(len(s.subs)))

	snapshot := s.snapshot(context.Background())
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		metrics.AlertSubscribers.Set(float64(len(s.subs)))
	}
}

// DashboardData recomputes the dashboard aggregates from the current
// alert list.
func (s *Service) DashboardData(ctx context.Context) (*domain.AlertDashboard, error) {
	alerts, err := s.repo.List(ctx, domain.AlertFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for dashboard: %w", err)
	}

	now := s.clock.Now()
	dash := &domain.AlertDashboard{
		AlertsByType:     make(map[domain.AlertType]int),
		AlertsBySeverity: make(map[domain.Severity]int),
	}

	var resolutionMinutes float64
	var resolvedCount int

	for _, a := range alerts {
		dash.AlertsByType[a.Type]++
		dash.AlertsBySeverity[a.Severity]++
		if a.IsOpen() {
			dash.TotalAlerts++
			if !a.IsRead {
				dash.UnreadAlerts++
			}
			if a.Severity == domain.SeverityCritical {
				dash.CriticalAlerts++
			}
		}
		if a.IsResolved && a.ResolvedAt != nil {
			resolvedCount++
			resolutionMinutes += a.ResolvedAt.Sub(a.CreatedAt).Minutes()
			if sameLocalDay(*a.ResolvedAt, now) {
				dash.ResolvedToday++
			}
		}
	}

	if resolvedCount > 0 {
		dash.AverageResolutionMinutes = int(math.Round(resolutionMinutes / float64(resolvedCount)))
	}

	dash.Trends = buildTrends(alerts, now)

	return dash, nil
}

// buildTrends computes per-day counts for the last seven days, oldest
// first. Days are bucketed by ISO date string.
func buildTrends(alerts []*domain.Alert, now time.Time) []domain.AlertTrend {
	trends := make([]domain.AlertTrend, 0, 7)
	for i := 6; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		trend := domain.AlertTrend{Date: date}
		for _, a := range alerts {
			if a.CreatedAt.Format("2006-01-02") == date {
				trend.Total++
				if a.Severity == domain.SeverityCritical {
					trend.Critical++
				}
				if a.IsResolved {
					trend.Resolved++
				}
			}
		}
		trends = append(trends, trend)
	}
	return trends
}

// sameLocalDay reports whether two instants fall on the same calendar day.
func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// snapshot fetches the full alert list for fan-out. Callers hold s.mu.
func (s *Service) snapshot(ctx context.Context) []*domain.Alert {
	alerts, err := s.repo.List(ctx, domain.AlertFilter{})
	if err != nil {
		s.logger.Error("failed to build alert snapshot", "error", err)
		return nil
	}
	return alerts
}

// fanOut delivers the current alert list to every subscriber. Callers
// hold s.mu, so snapshots arrive in mutation order.
func (s *Service) fanOut(ctx context.Context) {
	if len(s.subs) == 0 {
		s.refreshOpenGauge(nil, false)
		return
	}

	snapshot := s.snapshot(ctx)
	s.refreshOpenGauge(snapshot, true)
	for _, fn := range s.subs {
		fn(snapshot)
	}
}

// refreshOpenGauge recomputes the open-alert gauge from a snapshot.
func (s *Service) refreshOpenGauge(snapshot []*domain.Alert, have bool) {
	if !have {
		snapshot = s.snapshot(context.Background())
	}

	counts := make(map[domain.Severity]int)
	for _, a := range snapshot {
		if a.IsOpen() {
			counts[a.Severity]++
		}
	}
	for _, sev := range []domain.Severity{
		domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical,
	} {
		metrics.OpenAlerts.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
}
