package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"labwatch/internal/domain"
	"labwatch/internal/ingest"
)

// IngestHandler handles HTTP requests for event ingestion.
type IngestHandler struct {
	service *ingest.Service
	logger  *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(service *ingest.Service, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  logger,
	}
}

// IngestEvent handles POST /v1/events
// Receives an event envelope, validates it, and publishes to the feed queue.
// Returns 202 Accepted immediately - processing happens asynchronously.
func (h *IngestHandler) IngestEvent(c *fiber.Ctx) error {
	var envelope domain.Envelope
	if err := c.BodyParser(&envelope); err != nil {
		h.logger.Debug("failed to parse event body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := h.service.IngestEnvelope(c.Context(), &envelope); err != nil {
		if errors.Is(err, ingest.ErrInvalidEnvelope) {
			h.logger.Debug("envelope validation failed", "error", err)
			return ValidationError(c, err.Error())
		}
		h.logger.Error("failed to ingest event", "error", err, "kind", envelope.Kind)
		return InternalError(c, "failed to ingest event")
	}

	h.logger.Debug("event accepted", "kind", envelope.Kind, "partitionKey", envelope.PartitionKey)

	// Return 202 Accepted - the event will be processed asynchronously
	return Accepted(c, map[string]string{
		"status": "accepted",
		"kind":   string(envelope.Kind),
	})
}

// IngestMetric handles POST /v1/inventory/metrics
// Pushes a fresh inventory metric snapshot through the feed queue.
func (h *IngestHandler) IngestMetric(c *fiber.Ctx) error {
	var snapshot domain.MetricSnapshot
	if err := c.BodyParser(&snapshot); err != nil {
		h.logger.Debug("failed to parse metric body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := h.service.IngestMetric(c.Context(), &snapshot); err != nil {
		if errors.Is(err, ingest.ErrInvalidEnvelope) {
			h.logger.Debug("metric validation failed", "error", err)
			return ValidationError(c, err.Error())
		}
		h.logger.Error("failed to ingest metric", "error", err, "itemID", snapshot.ItemID)
		return InternalError(c, "failed to ingest metric")
	}

	return Accepted(c, map[string]string{
		"status":  "accepted",
		"item_id": snapshot.ItemID,
	})
}
