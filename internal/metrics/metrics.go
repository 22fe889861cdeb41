// Package metrics provides Prometheus metrics for LabWatch.
// It tracks rule evaluation, the alert lifecycle, and notification
// delivery to help measure alerting latency and feed health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "labwatch"
)

// Evaluation metrics track the rule engine.
var (
	// RuleEvaluationsTotal counts rule-against-snapshot evaluations,
	// labeled by whether the rule matched.
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      "Total number of rule evaluations against metric snapshots",
		},
		[]string{"rule_id", "matched"}, // matched: true, false
	)

	// EvaluationDuration measures the time of a full evaluation pass
	// across all active rules and snapshots.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a full evaluation pass in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Alert metrics track the alert lifecycle.
var (
	// AlertsCreatedTotal counts alerts raised, labeled by type and severity.
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	// AlertsResolvedTotal counts alerts resolved.
	AlertsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Total number of alerts resolved",
		},
		[]string{"type"},
	)

	// AlertActionsTotal counts action executions against alerts.
	AlertActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_actions_total",
			Help:      "Total number of alert actions executed",
		},
		[]string{"kind", "result"}, // result: success, failure
	)

	// OpenAlerts tracks the current number of unresolved alerts.
	OpenAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_alerts",
			Help:      "Current number of unresolved alerts",
		},
		[]string{"severity"},
	)
)

// Notification metrics track the notification pipeline.
var (
	// NotificationsDispatchedTotal counts notifications sent per channel.
	NotificationsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dispatched_total",
			Help:      "Total number of notifications dispatched",
		},
		[]string{"channel", "result"}, // result: success, failure
	)

	// NotificationsExpiredTotal counts notifications purged by the expiry sweep.
	NotificationsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_expired_total",
			Help:      "Total number of notifications removed by the expiry sweep",
		},
	)

	// NotificationSubscribers tracks the current number of notification subscribers.
	NotificationSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_subscribers",
			Help:      "Current number of notification feed subscribers",
		},
	)

	// AlertSubscribers tracks the current number of alert list subscribers.
	AlertSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_subscribers",
			Help:      "Current number of alert snapshot subscribers",
		},
	)
)

// Feed metrics track the event ingestion pipeline.
var (
	// FeedEventsTotal counts feed events consumed, labeled by kind.
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Total number of feed events consumed",
		},
		[]string{"kind", "result"}, // result: processed, malformed
	)

	// EventsPublishedTotal counts events successfully published to the queue.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published to the message queue",
		},
		[]string{"kind"},
	)

	// QueuePublishLatency measures time to publish a message to the queue.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)
