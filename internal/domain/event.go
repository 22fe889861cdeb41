package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// EventKind identifies the payload carried by a feed envelope.
type EventKind string

const (
	// KindPregnancyUpdate carries a PregnancyUpdate payload.
	KindPregnancyUpdate EventKind = "pregnancy_update"
	// KindDevelopmentAlert carries a DevelopmentAlert payload.
	KindDevelopmentAlert EventKind = "development_alert"
	// KindTransferAlert carries a TransferAlert payload.
	KindTransferAlert EventKind = "transfer_alert"
	// KindMetricRefresh carries a MetricSnapshot payload.
	KindMetricRefresh EventKind = "metric_refresh"
	// KindSystemNote carries a SystemNote payload.
	KindSystemNote EventKind = "system_note"
)

// IsValid returns true if the event kind is a known valid value.
func (k EventKind) IsValid() bool {
	switch k {
	case KindPregnancyUpdate, KindDevelopmentAlert, KindTransferAlert,
		KindMetricRefresh, KindSystemNote:
		return true
	default:
		return false
	}
}

// PregnancyResult is the outcome of a pregnancy checkup.
type PregnancyResult string

const (
	PregnancyPositive PregnancyResult = "POSITIVE"
	PregnancyNegative PregnancyResult = "NEGATIVE"
	PregnancyPending  PregnancyResult = "PENDING"
	PregnancyLost     PregnancyResult = "LOST"
)

// IsValid returns true if the result is a known valid value.
func (r PregnancyResult) IsValid() bool {
	switch r {
	case PregnancyPositive, PregnancyNegative, PregnancyPending, PregnancyLost:
		return true
	default:
		return false
	}
}

// PregnancyUpdate reports the outcome of a scheduled pregnancy check
// following an embryo transfer.
type PregnancyUpdate struct {
	TransferID    string          `json:"transfer_id"`
	RecipientID   string          `json:"recipient_id"`
	CheckupDay    int             `json:"checkup_day"`
	Result        PregnancyResult `json:"result"`
	Notes         string          `json:"notes,omitempty"`
	NextCheckDate *time.Time      `json:"next_check_date,omitempty"`
	Veterinarian  string          `json:"veterinarian"`
}

// Validation errors for feed events.
var (
	ErrEmptyTransferID      = errors.New("transfer_id is required")
	ErrInvalidResult        = errors.New("result must be POSITIVE, NEGATIVE, PENDING or LOST")
	ErrEmptySessionID       = errors.New("session_id is required")
	ErrEmptyDescription     = errors.New("description is required")
	ErrInvalidFeedSeverity  = errors.New("severity must be low, medium, high or critical")
	ErrEmptyMessage         = errors.New("message is required")
	ErrUnknownEventKind     = errors.New("unknown event kind")
	ErrEmptyEnvelopePayload = errors.New("envelope payload is required")
)

// Validate checks if the update has all required fields with valid values.
func (u *PregnancyUpdate) Validate() error {
	if u.TransferID == "" {
		return ErrEmptyTransferID
	}
	if !u.Result.IsValid() {
		return ErrInvalidResult
	}
	return nil
}

// DevelopmentIssue classifies what went wrong in an embryo culture session.
type DevelopmentIssue string

const (
	IssueSlowDevelopment      DevelopmentIssue = "slow_development"
	IssueAbnormalMorphology   DevelopmentIssue = "abnormal_morphology"
	IssueTemperatureDeviation DevelopmentIssue = "temperature_deviation"
	IssueContamination        DevelopmentIssue = "contamination"
)

// DevelopmentAlert reports an anomaly observed in an embryo culture session.
type DevelopmentAlert struct {
	SessionID         string           `json:"session_id"`
	EmbryoID          string           `json:"embryo_id,omitempty"`
	Issue             DevelopmentIssue `json:"issue"`
	Severity          Priority         `json:"severity"`
	Description       string           `json:"description"`
	RecommendedAction string           `json:"recommended_action,omitempty"`
}

// Validate checks if the alert has all required fields with valid values.
func (d *DevelopmentAlert) Validate() error {
	if d.SessionID == "" {
		return ErrEmptySessionID
	}
	if !d.Severity.IsValid() {
		return ErrInvalidFeedSeverity
	}
	if d.Description == "" {
		return ErrEmptyDescription
	}
	return nil
}

// TransferAlert reports a problem with an embryo transfer.
type TransferAlert struct {
	TransferID string   `json:"transfer_id"`
	Message    string   `json:"message"`
	Priority   Priority `json:"priority"`
}

// Validate checks if the alert has all required fields with valid values.
func (t *TransferAlert) Validate() error {
	if t.TransferID == "" {
		return ErrEmptyTransferID
	}
	if t.Message == "" {
		return ErrEmptyMessage
	}
	if !t.Priority.IsValid() {
		return ErrInvalidFeedSeverity
	}
	return nil
}

// SystemNote is a plain informational message from the platform itself.
type SystemNote struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Validate checks if the note has all required fields.
func (s *SystemNote) Validate() error {
	if s.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Envelope is the wire format for everything flowing through the feed
// queue: domain events and metric refreshes alike. The payload is decoded
// according to Kind by the feed service.
type Envelope struct {
	// Kind identifies the payload type.
	Kind EventKind `json:"kind"`

	// Payload is the kind-specific body.
	Payload json.RawMessage `json:"payload"`

	// PartitionKey routes envelopes for the same subject to one partition.
	PartitionKey string `json:"partition_key,omitempty"`

	// ReceivedAt is when the envelope entered the ingest service.
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the envelope's kind and payload presence.
func (e *Envelope) Validate() error {
	if !e.Kind.IsValid() {
		return ErrUnknownEventKind
	}
	if len(e.Payload) == 0 {
		return ErrEmptyEnvelopePayload
	}
	return nil
}
