package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Operator is the comparison applied by an alert rule condition.
type Operator string

const (
	OpLessThan    Operator = "LESS_THAN"
	OpGreaterThan Operator = "GREATER_THAN"
	OpEquals      Operator = "EQUALS"
	OpNotEquals   Operator = "NOT_EQUALS"
	// OpBetween checks value <= field <= second value, bounds inclusive.
	OpBetween Operator = "BETWEEN"
)

// IsValid returns true if the operator is a known valid value.
func (o Operator) IsValid() bool {
	switch o {
	case OpLessThan, OpGreaterThan, OpEquals, OpNotEquals, OpBetween:
		return true
	default:
		return false
	}
}

// ConditionValue is either a numeric literal or a reference to another
// field on the same metric snapshot. It marshals as a JSON number or a
// JSON string holding the field name.
type ConditionValue struct {
	Number *float64
	Field  string
}

// Literal constructs a numeric condition value.
func Literal(n float64) ConditionValue {
	return ConditionValue{Number: &n}
}

// FieldRef constructs a condition value referencing a snapshot field.
func FieldRef(name string) ConditionValue {
	return ConditionValue{Field: name}
}

// IsZero returns true if the value holds neither a literal nor a field ref.
func (v ConditionValue) IsZero() bool {
	return v.Number == nil && v.Field == ""
}

// MarshalJSON encodes the value as a number or field-name string.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	if v.Number != nil {
		return json.Marshal(*v.Number)
	}
	return json.Marshal(v.Field)
}

// UnmarshalJSON decodes a JSON number into a literal and a JSON string
// into a field reference.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		v.Number = &n
		v.Field = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("condition value must be a number or field name: %w", err)
	}
	v.Number = nil
	v.Field = s
	return nil
}

// AlertCondition is one predicate in a rule's condition list.
// All conditions of a rule must hold for the rule to fire.
type AlertCondition struct {
	// Field names the snapshot field the condition reads.
	Field string `json:"field"`

	// Operator is the comparison to apply.
	Operator Operator `json:"operator"`

	// Value is the right-hand side: a literal or another snapshot field.
	Value ConditionValue `json:"value"`

	// SecondValue is the upper bound for BETWEEN comparisons.
	SecondValue ConditionValue `json:"second_value,omitempty"`
}

// ChannelType identifies a notification delivery channel.
type ChannelType string

const (
	ChannelEmail   ChannelType = "EMAIL"
	ChannelSMS     ChannelType = "SMS"
	ChannelPush    ChannelType = "PUSH"
	ChannelWebhook ChannelType = "WEBHOOK"
	ChannelInApp   ChannelType = "IN_APP"
)

// IsValid returns true if the channel type is a known valid value.
func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWebhook, ChannelInApp:
		return true
	default:
		return false
	}
}

// NotificationChannel is a delivery target attached to a rule.
type NotificationChannel struct {
	Type    ChannelType `json:"type"`
	Enabled bool        `json:"enabled"`

	// Configuration carries channel-specific settings such as recipient
	// addresses or a webhook URL.
	Configuration map[string]string `json:"configuration,omitempty"`
}

// EscalationLevel is one step of a rule's escalation ladder.
type EscalationLevel struct {
	// DelayMinutes is how long after the alert fires this level triggers,
	// provided the alert is still unresolved.
	DelayMinutes int `json:"delay_minutes"`

	Recipients []string              `json:"recipients"`
	Channels   []NotificationChannel `json:"channels"`
}

// Delay returns the level's delay as a duration.
func (l EscalationLevel) Delay() time.Duration {
	return time.Duration(l.DelayMinutes) * time.Minute
}

// EscalationPolicy is the ordered escalation ladder for a rule.
type EscalationPolicy struct {
	Enabled bool              `json:"enabled"`
	Levels  []EscalationLevel `json:"levels"`
}

// AlertRule defines when an alert is raised and how it is delivered.
// Rules are created at configuration time, mutated via explicit updates,
// and deactivated rather than deleted.
type AlertRule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id"`

	// Name is a human-readable name for the rule.
	Name string `json:"name"`

	// Description explains what the rule watches for.
	Description string `json:"description,omitempty"`

	// Type is the alert type raised when the rule fires.
	Type AlertType `json:"type"`

	// Conditions are ANDed together against each metric snapshot.
	Conditions []AlertCondition `json:"conditions"`

	// Severity is assigned to alerts raised by this rule.
	Severity Severity `json:"severity"`

	// IsActive gates evaluation; inactive rules are skipped.
	IsActive bool `json:"is_active"`

	// Channels lists the delivery targets for raised alerts.
	Channels []NotificationChannel `json:"channels"`

	// Escalation is the optional escalation ladder.
	Escalation *EscalationPolicy `json:"escalation,omitempty"`

	// CreatedAt is when the rule was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the rule was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validation errors for AlertRule.
var (
	ErrEmptyRuleName       = errors.New("name is required")
	ErrInvalidRuleType     = errors.New("type must be a known alert type")
	ErrNoRuleConditions    = errors.New("at least one condition is required")
	ErrInvalidRuleOp       = errors.New("condition operator is not supported")
	ErrEmptyConditionField = errors.New("condition field is required")
	ErrInvalidSeverity     = errors.New("severity must be LOW, MEDIUM, HIGH or CRITICAL")
	ErrRuleNotFound        = errors.New("alert rule not found")
)

// Validate checks if the rule has all required fields with valid values.
// Returns an error describing the first validation failure, or nil if valid.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return ErrEmptyRuleName
	}
	if !r.Type.IsValid() {
		return ErrInvalidRuleType
	}
	if len(r.Conditions) == 0 {
		return ErrNoRuleConditions
	}
	for _, c := range r.Conditions {
		if c.Field == "" {
			return ErrEmptyConditionField
		}
		if !c.Operator.IsValid() {
			return ErrInvalidRuleOp
		}
	}
	if !r.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	return nil
}

// Deactivate turns the rule off without removing it.
func (r *AlertRule) Deactivate(at time.Time) {
	r.IsActive = false
	r.UpdatedAt = at
}

// DefaultRules returns the stock rule set installed on a fresh deployment:
// low stock, critical stock and expiry warning.
func DefaultRules(now time.Time) []*AlertRule {
	return []*AlertRule{
		{
			ID:          "rule-low-stock",
			Name:        "Low Stock Alert",
			Description: "Alert when stock falls below minimum level",
			Type:        AlertTypeLowStock,
			Conditions: []AlertCondition{
				{Field: "currentStock", Operator: OpLessThan, Value: FieldRef("minLevel")},
			},
			Severity: SeverityMedium,
			IsActive: true,
			Channels: []NotificationChannel{
				{Type: ChannelInApp, Enabled: true},
				{Type: ChannelEmail, Enabled: true, Configuration: map[string]string{"recipients": "inventory@lab.local"}},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "rule-critical-stock",
			Name:        "Critical Stock Alert",
			Description: "Alert when stock is critically low",
			Type:        AlertTypeCriticalStock,
			Conditions: []AlertCondition{
				{Field: "currentStock", Operator: OpLessThan, Value: FieldRef("safetyStock")},
			},
			Severity: SeverityCritical,
			IsActive: true,
			Channels: []NotificationChannel{
				{Type: ChannelInApp, Enabled: true},
				{Type: ChannelEmail, Enabled: true, Configuration: map[string]string{"recipients": "manager@lab.local"}},
				{Type: ChannelSMS, Enabled: true, Configuration: map[string]string{"phone": "+1234567890"}},
			},
			Escalation: &EscalationPolicy{
				Enabled: true,
				Levels: []EscalationLevel{
					{
						DelayMinutes: 30,
						Recipients:   []string{"director@lab.local"},
						Channels:     []NotificationChannel{{Type: ChannelEmail, Enabled: true}},
					},
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "rule-expiry-warning",
			Name:        "Expiry Warning",
			Description: "Alert when items are nearing expiry",
			Type:        AlertTypeExpiryWarning,
			Conditions: []AlertCondition{
				{Field: "daysToExpiry", Operator: OpLessThan, Value: Literal(30)},
			},
			Severity: SeverityHigh,
			IsActive: true,
			Channels: []NotificationChannel{
				{Type: ChannelInApp, Enabled: true},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
