// Package notification holds the UI-facing notification feed.
// The center keeps a bounded, newest-first list, fans every change out to
// subscribers, and sweeps expired entries on a timer.
package notification

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/metrics"
)

// DefaultCapacity bounds the feed; the oldest entries fall off first.
const DefaultCapacity = 100

// Center is the notification feed owner. All mutations go through it and
// every mutation delivers the full list to all subscribers synchronously,
// in mutation order.
type Center struct {
	clock         clock.Clock
	capacity      int
	sweepInterval time.Duration
	logger        *slog.Logger

	mu            sync.Mutex
	notifications []*domain.Notification
	subs          map[int]func([]*domain.Notification)
	nextSub       int

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewCenter creates a notification center. A capacity of 0 uses
// DefaultCapacity.
func NewCenter(clk clock.Clock, capacity int, sweepInterval time.Duration, logger *slog.Logger) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Center{
		clock:         clk,
		capacity:      capacity,
		sweepInterval: sweepInterval,
		logger:        logger,
		subs:          make(map[int]func([]*domain.Notification)),
	}
}

// Start launches the periodic expiry sweep. Idempotent.
func (c *Center) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sweepStop != nil {
		return
	}

	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go c.sweepLoop(c.sweepStop, c.sweepDone)

	c.logger.Info("notification sweep started", "interval", c.sweepInterval)
}

// Stop halts the expiry sweep. Idempotent.
func (c *Center) Stop() {
	c.mu.Lock()
	stop, done := c.sweepStop, c.sweepDone
	c.sweepStop, c.sweepDone = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
	c.logger.Info("notification sweep stopped")
}

func (c *Center) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.SweepExpired()
		}
	}
}

// SweepExpired removes every notification whose expiry has passed and
// notifies subscribers if anything was removed.
func (c *Center) SweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	kept := c.notifications[:0]
	removed := 0
	for _, n := range c.notifications {
		if n.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, n)
	}

	if removed == 0 {
		return
	}

	c.notifications = kept
	metrics.NotificationsExpiredTotal.Add(float64(removed))
	c.logger.Debug("expired notifications swept", "removed", removed)
	c.fanOut()
}

// Add inserts a notification at the head of the feed, filling in ID and
// timestamp when absent, and evicts the oldest entries beyond capacity.
func (c *Center) Add(n *domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = c.clock.Now()
	}

	c.notifications = append([]*domain.Notification{n}, c.notifications...)
	if len(c.notifications) > c.capacity {
		c.notifications = c.notifications[:c.capacity]
	}

	c.fanOut()
}

// AddPregnancyUpdate derives a feed notification from a pregnancy checkup
// result.
func (c *Center) AddPregnancyUpdate(update *domain.PregnancyUpdate) {
	notificationType := domain.NotificationInfo
	priority := domain.PriorityMedium
	switch update.Result {
	case domain.PregnancyPositive:
		notificationType = domain.NotificationSuccess
		priority = domain.PriorityHigh
	case domain.PregnancyNegative:
		notificationType = domain.NotificationWarning
	}

	message := "Transfer " + update.TransferID + ": " + string(update.Result)
	if update.Notes != "" {
		message += " - " + update.Notes
	}

	c.Add(&domain.Notification{
		Type:     notificationType,
		Title:    "Pregnancy Check - Day " + strconv.Itoa(update.CheckupDay),
		Message:  message,
		Priority: priority,
		Category: domain.CategoryPregnancy,
		Data:     update,
		Actions: []domain.NotificationAction{
			{ID: "view_details", Label: "View Details", Style: domain.StylePrimary, Target: "/transfers/" + update.TransferID},
			{ID: "schedule_next", Label: "Schedule Next Check", Style: domain.StyleSecondary, Target: "/transfers/" + update.TransferID + "/schedule"},
		},
	})
}

// AddDevelopmentAlert derives a feed notification from an embryo
// development alert.
func (c *Center) AddDevelopmentAlert(alert *domain.DevelopmentAlert) {
	notificationType := domain.NotificationWarning
	if alert.Severity == domain.PriorityCritical || alert.Severity == domain.PriorityHigh {
		notificationType = domain.NotificationError
	}

	priority := domain.PriorityMedium
	switch alert.Severity {
	case domain.PriorityCritical:
		priority = domain.PriorityCritical
	case domain.PriorityHigh:
		priority = domain.PriorityHigh
	}

	title := "Development Alert - " +
		strings.ToUpper(strings.ReplaceAll(string(alert.Issue), "_", " "))

	c.Add(&domain.Notification{
		Type:     notificationType,
		Title:    title,
		Message:  "Session " + alert.SessionID + ": " + alert.Description,
		Priority: priority,
		Category: domain.CategoryDevelopment,
		Data:     alert,
		Actions: []domain.NotificationAction{
			{ID: "view_session", Label: "View Session", Style: domain.StylePrimary, Target: "/sessions/" + alert.SessionID},
			{ID: "take_action", Label: "Take Action", Style: domain.StyleDanger, Target: "/sessions/" + alert.SessionID + "/interventions"},
		},
	})
}

// AddTransferAlert derives a feed notification from a transfer event.
// An empty priority defaults to medium.
func (c *Center) AddTransferAlert(transferID, message string, priority domain.Priority) {
	if priority == "" {
		priority = domain.PriorityMedium
	}

	notificationType := domain.NotificationWarning
	if priority == domain.PriorityHigh {
		notificationType = domain.NotificationError
	}

	c.Add(&domain.Notification{
		Type:     notificationType,
		Title:    "Transfer Alert",
		Message:  "Transfer " + transferID + ": " + message,
		Priority: priority,
		Category: domain.CategoryTransfer,
		Actions: []domain.NotificationAction{
			{ID: "view_transfer", Label: "View Transfer", Style: domain.StylePrimary, Target: "/transfers/" + transferID},
		},
	})
}

// MarkRead flags a notification as seen.
func (c *Center) MarkRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.notifications {
		if n.ID == id {
			n.IsRead = true
			c.fanOut()
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// MarkAllRead flags every notification as seen.
func (c *Center) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.notifications {
		n.IsRead = true
	}
	c.fanOut()
}

// Remove deletes a notification from the feed.
func (c *Center) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.notifications {
		if n.ID == id {
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			c.fanOut()
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// ClearAll empties the feed.
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = nil
	c.fanOut()
}

// GetNotifications returns the current feed, newest first.
func (c *Center) GetNotifications() []*domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// GetUnread returns unseen notifications, newest first.
func (c *Center) GetUnread() []*domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	var unread []*domain.Notification
	for _, n := range c.notifications {
		if !n.IsRead {
			unread = append(unread, copyNotification(n))
		}
	}
	return unread
}

// ByCategory returns notifications in the given category, newest first.
func (c *Center) ByCategory(category domain.Category) []*domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []*domain.Notification
	for _, n := range c.notifications {
		if n.Category == category {
			matched = append(matched, copyNotification(n))
		}
	}
	return matched
}

// UnreadCount returns the number of unseen notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.notifications {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Subscribe registers a callback invoked with the full feed after every
// change. The current feed is delivered synchronously before Subscribe
// returns. The returned function removes the subscription.
func (c *Center) Subscribe(fn func([]*domain.Notification)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	metrics.NotificationSubscribers.Set(float64(len(c.subs)))

	snapshot := c.snapshot()
	c.mu.Unlock()

	fn(snapshot)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
		metrics.NotificationSubscribers.Set(float64(len(c.subs)))
	}
}

// fanOut delivers the current feed to every subscriber. Callers hold c.mu.
func (c *Center) fanOut() {
	if len(c.subs) == 0 {
		return
	}
	snapshot := c.snapshot()
	for _, fn := range c.subs {
		fn(snapshot)
	}
}

// snapshot copies the feed for hand-off. Callers hold c.mu.
func (c *Center) snapshot() []*domain.Notification {
	out := make([]*domain.Notification, len(c.notifications))
	for i, n := range c.notifications {
		out[i] = copyNotification(n)
	}
	return out
}

func copyNotification(n *domain.Notification) *domain.Notification {
	dup := *n
	if n.ExpiresAt != nil {
		t := *n.ExpiresAt
		dup.ExpiresAt = &t
	}
	if n.Actions != nil {
		dup.Actions = make([]domain.NotificationAction, len(n.Actions))
		copy(dup.Actions, n.Actions)
	}
	return &dup
}
