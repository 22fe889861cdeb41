package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/store"
)

// RuleHandler handles HTTP requests for alert rule management.
type RuleHandler struct {
	repo   store.RuleRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(repo store.RuleRepository, clk clock.Clock, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// ruleRequest is the request body for creating or updating a rule.
type ruleRequest struct {
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Type        domain.AlertType             `json:"type"`
	Conditions  []domain.AlertCondition      `json:"conditions"`
	Severity    domain.Severity              `json:"severity"`
	IsActive    *bool                        `json:"is_active"`
	Channels    []domain.NotificationChannel `json:"channels"`
	Escalation  *domain.EscalationPolicy     `json:"escalation"`
}

// Create handles POST /v1/rules
func (h *RuleHandler) Create(c *fiber.Ctx) error {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	now := h.clock.Now()
	rule := &domain.AlertRule{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Conditions:  req.Conditions,
		Severity:    req.Severity,
		IsActive:    true,
		Channels:    req.Channels,
		Escalation:  req.Escalation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rule.Validate(); err != nil {
		return ValidationError(c, err.Error())
	}

	if err := h.repo.Create(c.Context(), rule); err != nil {
		h.logger.Error("failed to create rule", "error", err)
		return InternalError(c, "failed to create rule")
	}

	h.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	return Created(c, rule)
}

// List handles GET /v1/rules
// active=true narrows to rules eligible for evaluation.
func (h *RuleHandler) List(c *fiber.Ctx) error {
	var (
		rules []*domain.AlertRule
		err   error
	)
	if c.Query("active") == "true" {
		rules, err = h.repo.ListActive(c.Context())
	} else {
		rules, err = h.repo.List(c.Context())
	}
	if err != nil {
		h.logger.Error("failed to list rules", "error", err)
		return InternalError(c, "failed to list rules")
	}

	return Success(c, rules)
}

// GetByID handles GET /v1/rules/:id
func (h *RuleHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	rule, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			return NotFound(c, "rule not found")
		}
		h.logger.Error("failed to get rule", "rule_id", id, "error", err)
		return InternalError(c, "failed to get rule")
	}

	return Success(c, rule)
}

// Update handles PUT /v1/rules/:id
func (h *RuleHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	existing, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			return NotFound(c, "rule not found")
		}
		h.logger.Error("failed to get rule", "rule_id", id, "error", err)
		return InternalError(c, "failed to get rule")
	}

	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Type = req.Type
	existing.Conditions = req.Conditions
	existing.Severity = req.Severity
	existing.Channels = req.Channels
	existing.Escalation = req.Escalation
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.UpdatedAt = h.clock.Now()

	if err := existing.Validate(); err != nil {
		return ValidationError(c, err.Error())
	}

	if err := h.repo.Update(c.Context(), existing); err != nil {
		h.logger.Error("failed to update rule", "rule_id", id, "error", err)
		return InternalError(c, "failed to update rule")
	}

	return Success(c, existing)
}

// Delete handles DELETE /v1/rules/:id
// Rules are never hard-deleted: the rule is deactivated so alert history
// keeps a valid reference, and can be re-enabled via update.
func (h *RuleHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	rule, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			return NotFound(c, "rule not found")
		}
		h.logger.Error("failed to get rule", "rule_id", id, "error", err)
		return InternalError(c, "failed to get rule")
	}

	rule.Deactivate(h.clock.Now())
	if err := h.repo.Update(c.Context(), rule); err != nil {
		h.logger.Error("failed to deactivate rule", "rule_id", id, "error", err)
		return InternalError(c, "failed to deactivate rule")
	}

	h.logger.Info("rule deactivated", "rule_id", id)
	return Success(c, rule)
}
