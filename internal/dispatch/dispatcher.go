// Package dispatch delivers raised alerts to the channels configured on
// the triggering rule. Every channel is best effort: a failure is logged
// and counted, never propagated, and never blocks other channels.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"labwatch/internal/alerting"
	"labwatch/internal/domain"
	"labwatch/internal/metrics"
	"labwatch/internal/notification"
)

// Sender delivers an alert over one external channel (email, SMS, push,
// webhook). Implementations are wired per deployment; the dispatcher
// treats any sender error as a delivery failure for that channel only.
type Sender interface {
	Send(ctx context.Context, channel domain.NotificationChannel, alert *domain.Alert) error
}

// Dispatcher routes alerts to the channels of their triggering rule and
// runs the rule's escalation ladder.
type Dispatcher struct {
	center  *notification.Center
	alerts  *alerting.Service
	senders map[domain.ChannelType]Sender
	logger  *slog.Logger

	// wg tracks pending escalation timers so Close can drain them.
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

// New creates a dispatcher. The senders map may be nil or partial;
// channels without a sender are logged as undeliverable. IN_APP needs no
// sender, it posts into the notification center.
func New(
	center *notification.Center,
	alerts *alerting.Service,
	senders map[domain.ChannelType]Sender,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		center:  center,
		alerts:  alerts,
		senders: senders,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Dispatch delivers the alert to every enabled channel on the rule and
// schedules the rule's escalation levels.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *domain.Alert, rule *domain.AlertRule) {
	for _, channel := range rule.Channels {
		if !channel.Enabled {
			continue
		}
		d.deliver(ctx, channel, alert)
	}

	if rule.Escalation != nil && rule.Escalation.Enabled {
		d.scheduleEscalation(ctx, alert, rule)
	}
}

// deliver sends over a single channel, isolating failures.
func (d *Dispatcher) deliver(ctx context.Context, channel domain.NotificationChannel, alert *domain.Alert) {
	if channel.Type == domain.ChannelInApp {
		d.center.Add(inAppNotification(alert))
		metrics.NotificationsDispatchedTotal.WithLabelValues(string(channel.Type), "success").Inc()
		return
	}

	sender, ok := d.senders[channel.Type]
	if !ok {
		d.logger.Warn("no sender for channel", "channel", channel.Type, "alert_id", alert.ID)
		metrics.NotificationsDispatchedTotal.WithLabelValues(string(channel.Type), "failure").Inc()
		return
	}

	if err := sender.Send(ctx, channel, alert); err != nil {
		d.logger.Error("channel delivery failed",
			"channel", channel.Type, "alert_id", alert.ID, "error", err)
		metrics.NotificationsDispatchedTotal.WithLabelValues(string(channel.Type), "failure").Inc()
		return
	}

	metrics.NotificationsDispatchedTotal.WithLabelValues(string(channel.Type), "success").Inc()
}

// scheduleEscalation arms a timer per escalation level. A level fires
// only if the alert is still unresolved when its delay elapses.
func (d *Dispatcher) scheduleEscalation(ctx context.Context, alert *domain.Alert, rule *domain.AlertRule) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	for _, level := range rule.Escalation.Levels {
		d.wg.Add(1)
		go d.escalateAfter(ctx, alert, level)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) escalateAfter(ctx context.Context, alert *domain.Alert, level domain.EscalationLevel) {
	defer d.wg.Done()

	timer := time.NewTimer(level.Delay())
	defer timer.Stop()

	select {
	case <-d.stop:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	current, err := d.alerts.GetAlert(ctx, alert.ID)
	if err != nil {
		// Alert deleted in the meantime; nothing to escalate.
		return
	}
	if current.IsResolved {
		return
	}

	d.logger.Warn("alert escalated",
		"alert_id", alert.ID,
		"delay_minutes", level.DelayMinutes,
		"recipients", level.Recipients,
	)

	for _, channel := range level.Channels {
		if !channel.Enabled {
			continue
		}
		d.deliver(ctx, channel, current)
	}
}

// Close cancels pending escalations and waits for their goroutines.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
}

// inAppNotification derives the feed notification for an alert.
func inAppNotification(alert *domain.Alert) *domain.Notification {
	priority := domain.PriorityMedium
	notificationType := domain.NotificationWarning
	switch alert.Severity {
	case domain.SeverityLow:
		priority = domain.PriorityLow
		notificationType = domain.NotificationInfo
	case domain.SeverityHigh:
		priority = domain.PriorityHigh
		notificationType = domain.NotificationError
	case domain.SeverityCritical:
		priority = domain.PriorityCritical
		notificationType = domain.NotificationError
	}

	return &domain.Notification{
		Type:     notificationType,
		Title:    alert.ItemName,
		Message:  alert.Message,
		Priority: priority,
		Category: domain.CategoryAlert,
		Data:     alert,
		Actions: []domain.NotificationAction{
			{ID: "view_alert", Label: "View Alert", Style: domain.StylePrimary, Target: "/alerts/" + alert.ID},
		},
	}
}
