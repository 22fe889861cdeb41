package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func validRule() *AlertRule {
	return &AlertRule{
		ID:   "rule-1",
		Name: "Low Stock",
		Type: AlertTypeLowStock,
		Conditions: []AlertCondition{
			{Field: "currentStock", Operator: OpLessThan, Value: FieldRef("minLevel")},
		},
		Severity: SeverityMedium,
		IsActive: true,
	}
}

func TestAlertRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *AlertRule)
		wantErr error
	}{
		{"valid rule", func(r *AlertRule) {}, nil},
		{"missing name", func(r *AlertRule) { r.Name = "" }, ErrEmptyRuleName},
		{"bad type", func(r *AlertRule) { r.Type = "NOT_A_TYPE" }, ErrInvalidRuleType},
		{"no conditions", func(r *AlertRule) { r.Conditions = nil }, ErrNoRuleConditions},
		{"empty condition field", func(r *AlertRule) { r.Conditions[0].Field = "" }, ErrEmptyConditionField},
		{"bad operator", func(r *AlertRule) { r.Conditions[0].Operator = "LIKE" }, ErrInvalidRuleOp},
		{"bad severity", func(r *AlertRule) { r.Severity = "URGENT" }, ErrInvalidSeverity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)
			if err := rule.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlertRule_Deactivate(t *testing.T) {
	rule := validRule()
	at := time.Now()

	rule.Deactivate(at)

	if rule.IsActive {
		t.Error("IsActive should be false after Deactivate")
	}
	if !rule.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", rule.UpdatedAt, at)
	}
}

func TestConditionValue_JSON(t *testing.T) {
	// Literal round-trip
	data, err := json.Marshal(Literal(42))
	if err != nil {
		t.Fatalf("Marshal literal: %v", err)
	}
	if string(data) != "42" {
		t.Errorf("literal JSON = %s, want 42", data)
	}

	var lit ConditionValue
	if err := json.Unmarshal([]byte("42"), &lit); err != nil {
		t.Fatalf("Unmarshal literal: %v", err)
	}
	if lit.Number == nil || *lit.Number != 42 {
		t.Errorf("literal = %+v, want Number=42", lit)
	}

	// Field reference round-trip
	data, err = json.Marshal(FieldRef("minLevel"))
	if err != nil {
		t.Fatalf("Marshal field ref: %v", err)
	}
	if string(data) != `"minLevel"` {
		t.Errorf("field ref JSON = %s, want \"minLevel\"", data)
	}

	var ref ConditionValue
	if err := json.Unmarshal([]byte(`"minLevel"`), &ref); err != nil {
		t.Fatalf("Unmarshal field ref: %v", err)
	}
	if ref.Field != "minLevel" || ref.Number != nil {
		t.Errorf("field ref = %+v, want Field=minLevel", ref)
	}

	// Invalid input
	var bad ConditionValue
	if err := json.Unmarshal([]byte(`{"x":1}`), &bad); err == nil {
		t.Error("object should not decode as a condition value")
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules(time.Now())

	if len(rules) != 3 {
		t.Fatalf("got %d default rules, want 3", len(rules))
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			t.Errorf("default rule %s invalid: %v", rule.ID, err)
		}
		if !rule.IsActive {
			t.Errorf("default rule %s should be active", rule.ID)
		}
	}

	if rules[1].Type != AlertTypeCriticalStock {
		t.Errorf("second rule type = %v, want CRITICAL_STOCK", rules[1].Type)
	}
	if rules[1].Escalation == nil || !rules[1].Escalation.Enabled {
		t.Error("critical stock rule should carry an enabled escalation ladder")
	}
	if got := rules[1].Escalation.Levels[0].Delay(); got != 30*time.Minute {
		t.Errorf("escalation delay = %v, want 30m", got)
	}
}
