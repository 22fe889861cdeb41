// Package domain contains the core business entities and value objects for LabWatch.
// These models represent the ubiquitous language of the lab alerting domain.
package domain

import (
	"errors"
	"time"
)

// ErrAlertNotFound is returned when an alert cannot be found.
var ErrAlertNotFound = errors.New("alert not found")

// AlertType classifies the condition an alert reports on.
type AlertType string

const (
	AlertTypeLowStock      AlertType = "LOW_STOCK"
	AlertTypeCriticalStock AlertType = "CRITICAL_STOCK"
	AlertTypeOverstock     AlertType = "OVERSTOCK"
	AlertTypeExpiryWarning AlertType = "EXPIRY_WARNING"
	AlertTypeExpired       AlertType = "EXPIRED"
	AlertTypeReorderPoint  AlertType = "REORDER_POINT"
	AlertTypeQualityIssue  AlertType = "QUALITY_ISSUE"
	AlertTypeSupplierDelay AlertType = "SUPPLIER_DELAY"
	AlertTypeCostVariance  AlertType = "COST_VARIANCE"
	AlertTypeSystemError   AlertType = "SYSTEM_ERROR"
)

// IsValid returns true if the alert type is a known valid value.
func (t AlertType) IsValid() bool {
	switch t {
	case AlertTypeLowStock, AlertTypeCriticalStock, AlertTypeOverstock,
		AlertTypeExpiryWarning, AlertTypeExpired, AlertTypeReorderPoint,
		AlertTypeQualityIssue, AlertTypeSupplierDelay, AlertTypeCostVariance,
		AlertTypeSystemError:
		return true
	default:
		return false
	}
}

// Severity represents the severity level of an alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid returns true if the severity is a known valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ActionKind identifies what an alert action does when executed.
type ActionKind string

const (
	ActionMarkRead            ActionKind = "markRead"
	ActionResolve             ActionKind = "resolve"
	ActionCreatePurchaseOrder ActionKind = "createPurchaseOrder"
	ActionAdjustLevels        ActionKind = "adjustLevels"
	ActionMarkClearance       ActionKind = "markClearance"
	ActionExtendExpiry        ActionKind = "extendExpiry"
	ActionReturnToSupplier    ActionKind = "returnToSupplier"
	ActionTransferLocation    ActionKind = "transferLocation"
)

// IsTerminal returns true if executing the action also resolves the alert.
func (k ActionKind) IsTerminal() bool {
	switch k {
	case ActionResolve, ActionCreatePurchaseOrder, ActionExtendExpiry:
		return true
	default:
		return false
	}
}

// AlertAction is an operation a user may execute against an open alert.
type AlertAction struct {
	// ID is the action identifier, unique within one alert.
	ID string `json:"id"`

	// Label is the human-readable name shown to the user.
	Label string `json:"label"`

	// Kind identifies the side effect performed on execution.
	Kind ActionKind `json:"kind"`

	// Primary marks the recommended action for this alert.
	Primary bool `json:"primary,omitempty"`

	// ConfirmRequired marks actions that need explicit user confirmation.
	ConfirmRequired bool `json:"confirm_required,omitempty"`
}

// Alert represents a triggered inventory condition awaiting attention.
// Alerts are created by the evaluator when a rule's conditions first hold
// for a monitored item, and mutated only through the alerting service.
type Alert struct {
	// ID is the unique identifier for this alert.
	ID string `json:"id"`

	// Type is the alert classification, taken from the triggering rule.
	Type AlertType `json:"type"`

	// Severity is the severity level, taken from the triggering rule.
	Severity Severity `json:"severity"`

	// ItemID identifies the monitored inventory item.
	ItemID string `json:"item_id"`

	// ItemName is the display name of the item at creation time.
	ItemName string `json:"item_name"`

	// Category is the item's inventory category.
	Category string `json:"category"`

	// CurrentValue is the observed metric value when the alert fired.
	CurrentValue float64 `json:"current_value"`

	// Threshold is the configured limit that was crossed.
	Threshold float64 `json:"threshold"`

	// Message is the human-readable alert description.
	Message string `json:"message"`

	// CreatedAt is when the alert was raised.
	CreatedAt time.Time `json:"created_at"`

	// IsRead marks whether a user has seen the alert.
	IsRead bool `json:"is_read"`

	// IsResolved marks whether the alert has been closed.
	IsResolved bool `json:"is_resolved"`

	// ResolvedBy records the identity that resolved the alert.
	ResolvedBy string `json:"resolved_by,omitempty"`

	// ResolvedAt is when the alert was resolved. Nil while open.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// Actions are the operations available against this alert.
	Actions []AlertAction `json:"actions"`

	// Metadata carries free-form context, e.g. the originating rule ID.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsOpen returns true if the alert has not been resolved.
func (a *Alert) IsOpen() bool {
	return !a.IsResolved
}

// MarkRead flags the alert as seen by a user.
func (a *Alert) MarkRead() {
	a.IsRead = true
}

// Resolve closes the alert with the acting identity.
// Resolving does not set IsRead; the two flags are independent.
func (a *Alert) Resolve(by string, at time.Time) {
	a.IsResolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &at
}

// FindAction returns the action with the given ID, or nil if absent.
func (a *Alert) FindAction(actionID string) *AlertAction {
	for i := range a.Actions {
		if a.Actions[i].ID == actionID {
			return &a.Actions[i]
		}
	}
	return nil
}

// ActionsForType builds the action list attached to a new alert of the
// given type. Every alert gets mark-read and resolve; stock, expiry and
// overstock alerts get their domain-specific follow-ups.
func ActionsForType(t AlertType) []AlertAction {
	actions := []AlertAction{
		{ID: "mark-read", Label: "Mark as Read", Kind: ActionMarkRead},
		{ID: "resolve", Label: "Resolve", Kind: ActionResolve},
	}

	switch t {
	case AlertTypeLowStock, AlertTypeCriticalStock, AlertTypeReorderPoint:
		actions = append(actions,
			AlertAction{ID: "create-po", Label: "Create Purchase Order", Kind: ActionCreatePurchaseOrder, Primary: true},
			AlertAction{ID: "adjust-levels", Label: "Adjust Stock Levels", Kind: ActionAdjustLevels},
		)
	case AlertTypeExpiryWarning, AlertTypeExpired:
		actions = append(actions,
			AlertAction{ID: "mark-clearance", Label: "Mark for Clearance", Kind: ActionMarkClearance},
			AlertAction{ID: "extend-expiry", Label: "Extend Expiry Date", Kind: ActionExtendExpiry, ConfirmRequired: true},
		)
	case AlertTypeOverstock:
		actions = append(actions,
			AlertAction{ID: "return-supplier", Label: "Return to Supplier", Kind: ActionReturnToSupplier},
			AlertAction{ID: "transfer-location", Label: "Transfer Location", Kind: ActionTransferLocation},
		)
	}

	return actions
}

// AlertFilter provides filtering options for querying alerts.
type AlertFilter struct {
	ItemID   string
	Type     AlertType
	Severity Severity
	// Open filters to unresolved alerts when true.
	Open   bool
	Unread bool
	Limit  int
	Offset int
}
