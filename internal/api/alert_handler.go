package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"labwatch/internal/alerting"
	"labwatch/internal/domain"
)

// AlertHandler handles HTTP requests for alert operations.
type AlertHandler struct {
	alerts *alerting.Service
	logger *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alerts *alerting.Service, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger,
	}
}

// List handles GET /v1/alerts
// Returns alerts matching query parameters, newest first.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	filter := domain.AlertFilter{
		ItemID: c.Query("item_id"),
	}

	if alertType := c.Query("type"); alertType != "" {
		filter.Type = domain.AlertType(alertType)
	}
	if severity := c.Query("severity"); severity != "" {
		filter.Severity = domain.Severity(severity)
	}

	// status=open narrows to unresolved, status=unread to unseen.
	switch c.Query("status") {
	case "open":
		filter.Open = true
	case "unread":
		filter.Unread = true
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	// Default limit if not specified
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	alerts, err := h.alerts.GetAlerts(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		return InternalError(c, "failed to list alerts")
	}

	return Success(c, alerts)
}

// GetByID handles GET /v1/alerts/:id
func (h *AlertHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	alert, err := h.alerts.GetAlert(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to get alert", "alert_id", id, "error", err)
		return InternalError(c, "failed to get alert")
	}

	return Success(c, alert)
}

// MarkRead handles POST /v1/alerts/:id/read
func (h *AlertHandler) MarkRead(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.alerts.MarkRead(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to mark alert read", "alert_id", id, "error", err)
		return InternalError(c, "failed to mark alert read")
	}

	return Success(c, map[string]string{"status": "read"})
}

// resolveRequest is the body for POST /v1/alerts/:id/resolve.
type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// Resolve handles POST /v1/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	var req resolveRequest
	// An empty body is fine; the resolver defaults to "system".
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return BadRequest(c, "invalid request body")
		}
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = "system"
	}

	if err := h.alerts.Resolve(c.Context(), id, req.ResolvedBy); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to resolve alert", "alert_id", id, "error", err)
		return InternalError(c, "failed to resolve alert")
	}

	return Success(c, map[string]string{"status": "resolved"})
}

// ExecuteAction handles POST /v1/alerts/:id/actions/:actionID
// The response reports whether the action executed; an unknown alert or
// action is a 404, mirroring the executor's false return.
func (h *AlertHandler) ExecuteAction(c *fiber.Ctx) error {
	id := c.Params("id")
	actionID := c.Params("actionID")
	if id == "" || actionID == "" {
		return BadRequest(c, "id and actionID are required")
	}

	var params map[string]string
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return BadRequest(c, "invalid request body")
		}
	}

	if !h.alerts.ExecuteAction(c.Context(), id, actionID, params) {
		return NotFound(c, "alert or action not found")
	}

	return Success(c, map[string]bool{"executed": true})
}

// ClearAll handles DELETE /v1/alerts
func (h *AlertHandler) ClearAll(c *fiber.Ctx) error {
	if err := h.alerts.ClearAll(c.Context()); err != nil {
		h.logger.Error("failed to clear alerts", "error", err)
		return InternalError(c, "failed to clear alerts")
	}
	return NoContent(c)
}

// Dashboard handles GET /v1/dashboard
func (h *AlertHandler) Dashboard(c *fiber.Ctx) error {
	dash, err := h.alerts.DashboardData(c.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard", "error", err)
		return InternalError(c, "failed to build dashboard")
	}
	return Success(c, dash)
}
