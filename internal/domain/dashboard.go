package domain

// AlertTrend is one day of the dashboard's 7-day alert history.
type AlertTrend struct {
	// Date is the ISO calendar date (YYYY-MM-DD).
	Date string `json:"date"`

	// Total is the number of alerts created on that date.
	Total int `json:"total"`

	// Critical is how many of those were critical severity.
	Critical int `json:"critical"`

	// Resolved is how many of that date's alerts are resolved.
	Resolved int `json:"resolved"`
}

// AlertDashboard is the read-only aggregate view over the alert store.
// It is recomputed on demand, never cached.
type AlertDashboard struct {
	// TotalAlerts counts unresolved alerts.
	TotalAlerts int `json:"total_alerts"`

	// UnreadAlerts counts unresolved alerts not yet read.
	UnreadAlerts int `json:"unread_alerts"`

	// CriticalAlerts counts unresolved critical-severity alerts.
	CriticalAlerts int `json:"critical_alerts"`

	// ResolvedToday counts alerts resolved during the current local day.
	ResolvedToday int `json:"resolved_today"`

	// AverageResolutionMinutes is the mean open-to-resolved latency
	// across all resolved alerts, rounded to whole minutes.
	AverageResolutionMinutes int `json:"average_resolution_minutes"`

	// AlertsByType counts all alerts grouped by type.
	AlertsByType map[AlertType]int `json:"alerts_by_type"`

	// AlertsBySeverity counts all alerts grouped by severity.
	AlertsBySeverity map[Severity]int `json:"alerts_by_severity"`

	// Trends is the per-day series for the last seven days, oldest first.
	Trends []AlertTrend `json:"trends"`
}
