package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"labwatch/internal/domain"
	"labwatch/internal/notification"
)

// NotificationHandler handles HTTP requests for the notification feed.
type NotificationHandler struct {
	center *notification.Center
	logger *slog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(center *notification.Center, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		center: center,
		logger: logger,
	}
}

// List handles GET /v1/notifications
// Supports ?category= and ?unread=true filters.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	if c.Query("unread") == "true" {
		return Success(c, h.center.GetUnread())
	}
	if category := c.Query("category"); category != "" {
		return Success(c, h.center.ByCategory(domain.Category(category)))
	}
	return Success(c, h.center.GetNotifications())
}

// MarkRead handles POST /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.center.MarkRead(id); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return NotFound(c, "notification not found")
		}
		h.logger.Error("failed to mark notification read", "notification_id", id, "error", err)
		return InternalError(c, "failed to mark notification read")
	}

	return Success(c, map[string]string{"status": "read"})
}

// MarkAllRead handles POST /v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	h.center.MarkAllRead()
	return Success(c, map[string]string{"status": "read"})
}

// Remove handles DELETE /v1/notifications/:id
func (h *NotificationHandler) Remove(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.center.Remove(id); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return NotFound(c, "notification not found")
		}
		h.logger.Error("failed to remove notification", "notification_id", id, "error", err)
		return InternalError(c, "failed to remove notification")
	}

	return NoContent(c)
}

// ClearAll handles DELETE /v1/notifications
func (h *NotificationHandler) ClearAll(c *fiber.Ctx) error {
	h.center.ClearAll()
	return NoContent(c)
}
