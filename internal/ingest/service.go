// Package ingest receives feed envelopes, validates them, computes
// partition keys and publishes them to the message queue for the feed
// consumer.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/metrics"
	"labwatch/internal/queue"
)

// Service handles envelope ingestion.
type Service struct {
	producer queue.Producer
	clock    clock.Clock
	logger   *slog.Logger
}

// NewService creates a new ingest service.
func NewService(producer queue.Producer, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		producer: producer,
		clock:    clk,
		logger:   logger,
	}
}

// Errors returned by the ingest service.
var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrPublishFailed   = errors.New("failed to publish envelope to queue")
)

// IngestEnvelope validates an envelope and publishes it to the queue.
//
// The processing flow:
// 1. Validate the envelope shape and its kind-specific payload
// 2. Compute the partition key from the payload's subject
// 3. Stamp the receive time
// 4. Publish to the message queue
func (s *Service) IngestEnvelope(ctx context.Context, envelope *domain.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	subject, err := validatePayload(envelope)
	if err != nil {
		s.logger.Warn("rejected malformed payload", "kind", envelope.Kind, "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	envelope.PartitionKey = computePartitionKey(envelope.Kind, subject)
	envelope.ReceivedAt = s.clock.Now()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	msg := &queue.Message{
		Key:   []byte(envelope.PartitionKey),
		Value: payload,
		Headers: map[string]string{
			"kind": string(envelope.Kind),
		},
	}

	publishStart := time.Now()
	if err := s.producer.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to publish envelope", "kind", envelope.Kind, "error", err)
		return ErrPublishFailed
	}
	metrics.QueuePublishLatency.Observe(time.Since(publishStart).Seconds())
	metrics.EventsPublishedTotal.WithLabelValues(string(envelope.Kind)).Inc()

	s.logger.Debug("envelope published",
		"kind", envelope.Kind,
		"subject", subject,
		"partitionKey", envelope.PartitionKey,
	)

	return nil
}

// IngestMetric wraps a metric snapshot in an envelope and publishes it.
func (s *Service) IngestMetric(ctx context.Context, snap *domain.MetricSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	return s.IngestEnvelope(ctx, &domain.Envelope{
		Kind:    domain.KindMetricRefresh,
		Payload: payload,
	})
}

// validatePayload decodes and validates the kind-specific payload and
// returns the subject identifier used for partitioning.
func validatePayload(envelope *domain.Envelope) (string, error) {
	switch envelope.Kind {
	case domain.KindPregnancyUpdate:
		var update domain.PregnancyUpdate
		if err := json.Unmarshal(envelope.Payload, &update); err != nil {
			return "", fmt.Errorf("failed to decode pregnancy update: %w", err)
		}
		if err := update.Validate(); err != nil {
			return "", err
		}
		return update.TransferID, nil

	case domain.KindDevelopmentAlert:
		var alert domain.DevelopmentAlert
		if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
			return "", fmt.Errorf("failed to decode development alert: %w", err)
		}
		if err := alert.Validate(); err != nil {
			return "", err
		}
		return alert.SessionID, nil

	case domain.KindTransferAlert:
		var alert domain.TransferAlert
		if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
			return "", fmt.Errorf("failed to decode transfer alert: %w", err)
		}
		if err := alert.Validate(); err != nil {
			return "", err
		}
		return alert.TransferID, nil

	case domain.KindMetricRefresh:
		var snap domain.MetricSnapshot
		if err := json.Unmarshal(envelope.Payload, &snap); err != nil {
			return "", fmt.Errorf("failed to decode metric snapshot: %w", err)
		}
		if err := snap.Validate(); err != nil {
			return "", err
		}
		return snap.ItemID, nil

	case domain.KindSystemNote:
		var note domain.SystemNote
		if err := json.Unmarshal(envelope.Payload, &note); err != nil {
			return "", fmt.Errorf("failed to decode system note: %w", err)
		}
		if err := note.Validate(); err != nil {
			return "", err
		}
		return note.Title, nil

	default:
		return "", domain.ErrUnknownEventKind
	}
}

// computePartitionKey generates a deterministic partition key so all
// envelopes about the same subject land on the same partition and are
// processed in order.
func computePartitionKey(kind domain.EventKind, subject string) string {
	input := string(kind) + ":" + subject
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
