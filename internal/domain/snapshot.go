package domain

import (
	"errors"
	"math"
	"time"
)

// ErrSnapshotNotFound is returned when a metric snapshot cannot be found.
var ErrSnapshotNotFound = errors.New("metric snapshot not found")

// MetricSnapshot is the current observed state of one monitored inventory
// item, together with its configured thresholds. Snapshots are refreshed
// externally (push or poll) and are read-only to the evaluator.
type MetricSnapshot struct {
	// ItemID identifies the monitored item.
	ItemID string `json:"item_id"`

	// ItemName is the item's display name.
	ItemName string `json:"item_name"`

	// Category is the item's inventory category, e.g. MEDIA or HORMONE.
	Category string `json:"category"`

	// CurrentStock is the quantity currently on hand.
	CurrentStock float64 `json:"current_stock"`

	// MinLevel is the configured minimum stock level.
	MinLevel float64 `json:"min_level"`

	// MaxLevel is the configured maximum stock level.
	MaxLevel float64 `json:"max_level"`

	// ReorderPoint is the level at which restocking should start.
	ReorderPoint float64 `json:"reorder_point"`

	// SafetyStock is the emergency floor below which operation is at risk.
	SafetyStock float64 `json:"safety_stock"`

	// AverageConsumption is the mean daily consumption.
	AverageConsumption float64 `json:"average_consumption"`

	// LeadTimeDays is the supplier lead time in days.
	LeadTimeDays float64 `json:"lead_time_days"`

	// LastRestocked is when the item was last restocked.
	LastRestocked time.Time `json:"last_restocked"`

	// DaysOfStock is the projected days until depletion.
	DaysOfStock float64 `json:"days_of_stock"`

	// TurnoverRate is the annualized inventory turnover.
	TurnoverRate float64 `json:"turnover_rate"`

	// ExpiryDate is the expiry of the current lot, if it expires.
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`

	// Quality is an optional 0-10 quality score.
	Quality float64 `json:"quality,omitempty"`

	// UpdatedAt is when the snapshot was last refreshed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validation errors for MetricSnapshot.
var (
	ErrEmptyItemID = errors.New("item_id is required")
)

// Validate checks if the snapshot has all required fields.
func (m *MetricSnapshot) Validate() error {
	if m.ItemID == "" {
		return ErrEmptyItemID
	}
	return nil
}

// fieldAccessor extracts one named field from a snapshot.
type fieldAccessor func(m *MetricSnapshot, now time.Time) float64

// fieldAccessors maps condition field names to typed extraction functions.
// Built once at package init; string-keyed lookup replaces the dynamic
// field dispatch of the original system.
var fieldAccessors = map[string]fieldAccessor{
	"currentStock":       func(m *MetricSnapshot, _ time.Time) float64 { return m.CurrentStock },
	"minLevel":           func(m *MetricSnapshot, _ time.Time) float64 { return m.MinLevel },
	"maxLevel":           func(m *MetricSnapshot, _ time.Time) float64 { return m.MaxLevel },
	"reorderPoint":       func(m *MetricSnapshot, _ time.Time) float64 { return m.ReorderPoint },
	"safetyStock":        func(m *MetricSnapshot, _ time.Time) float64 { return m.SafetyStock },
	"averageConsumption": func(m *MetricSnapshot, _ time.Time) float64 { return m.AverageConsumption },
	"leadTimeDays":       func(m *MetricSnapshot, _ time.Time) float64 { return m.LeadTimeDays },
	"daysOfStock":        func(m *MetricSnapshot, _ time.Time) float64 { return m.DaysOfStock },
	"turnoverRate":       func(m *MetricSnapshot, _ time.Time) float64 { return m.TurnoverRate },
	"quality":            func(m *MetricSnapshot, _ time.Time) float64 { return m.Quality },
	"daysToExpiry": func(m *MetricSnapshot, now time.Time) float64 {
		if m.ExpiryDate == nil {
			return math.Inf(1)
		}
		return math.Ceil(m.ExpiryDate.Sub(now).Hours() / 24)
	},
}

// Field returns the value of the named snapshot field at the given time.
// Unknown field names resolve to 0; this mirrors the original system's
// silent default rather than raising an evaluation error.
func (m *MetricSnapshot) Field(name string, now time.Time) float64 {
	if accessor, ok := fieldAccessors[name]; ok {
		return accessor(m, now)
	}
	return 0
}

// ResolveValue resolves a condition value against this snapshot: literals
// return themselves, field references read the named field.
func (m *MetricSnapshot) ResolveValue(v ConditionValue, now time.Time) float64 {
	if v.Number != nil {
		return *v.Number
	}
	return m.Field(v.Field, now)
}

// ThresholdFor returns the configured limit relevant to the given alert
// type, used to report which threshold was crossed. Expiry alerts have no
// per-item limit; their bound lives in the rule condition, so they report 0
// here and the evaluator substitutes the condition's literal.
func (m *MetricSnapshot) ThresholdFor(t AlertType) float64 {
	switch t {
	case AlertTypeLowStock:
		return m.MinLevel
	case AlertTypeCriticalStock:
		return m.SafetyStock
	case AlertTypeOverstock:
		return m.MaxLevel
	case AlertTypeReorderPoint:
		return m.ReorderPoint
	case AlertTypeQualityIssue:
		return m.Quality
	default:
		return 0
	}
}
