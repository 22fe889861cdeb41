package domain

import (
	"errors"
	"time"
)

// ErrNotificationNotFound is returned when a notification cannot be found.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationType is the visual classification of a notification.
type NotificationType string

const (
	NotificationSuccess          NotificationType = "success"
	NotificationWarning          NotificationType = "warning"
	NotificationError            NotificationType = "error"
	NotificationInfo             NotificationType = "info"
	NotificationPregnancyUpdate  NotificationType = "pregnancy_update"
	NotificationDevelopmentAlert NotificationType = "development_alert"
)

// Priority ranks how urgently a notification should be surfaced.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is a known valid value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Category groups notifications by the domain area they belong to.
type Category string

const (
	CategoryTransfer    Category = "transfer"
	CategoryPregnancy   Category = "pregnancy"
	CategoryDevelopment Category = "development"
	CategorySystem      Category = "system"
	CategoryAlert       Category = "alert"
)

// ActionStyle is the rendering hint for a notification action.
type ActionStyle string

const (
	StylePrimary   ActionStyle = "primary"
	StyleSecondary ActionStyle = "secondary"
	StyleDanger    ActionStyle = "danger"
)

// NotificationAction is a follow-up a user can take from a notification.
// The target is an application route or entity reference; resolving it is
// the consumer's concern, not the notification center's.
type NotificationAction struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Style  ActionStyle `json:"style"`
	Target string      `json:"target,omitempty"`
}

// Notification is a UI-facing message delivered to subscribers.
// Notifications expire via the periodic sweep once ExpiresAt passes.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Type is the visual classification.
	Type NotificationType `json:"type"`

	// Title is the short heading.
	Title string `json:"title"`

	// Message is the notification body.
	Message string `json:"message"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// Priority ranks display urgency.
	Priority Priority `json:"priority"`

	// Category groups the notification by domain area.
	Category Category `json:"category"`

	// IsRead marks whether a user has seen the notification.
	IsRead bool `json:"is_read"`

	// ExpiresAt is the optional expiry; expired entries are swept.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Actions are follow-ups the user may take.
	Actions []NotificationAction `json:"actions,omitempty"`

	// Data carries the originating domain payload, if any.
	Data any `json:"data,omitempty"`
}

// Expired reports whether the notification's expiry has passed.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}
