// Package feed consumes envelopes from the message queue and routes them:
// metric refreshes into the metric store, domain events into the
// notification center. Malformed payloads are logged and skipped so a bad
// message never wedges the consumer.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"labwatch/internal/domain"
	"labwatch/internal/metrics"
	"labwatch/internal/notification"
	"labwatch/internal/queue"
	"labwatch/internal/store"
)

// Service is the feed consumer.
type Service struct {
	consumer  queue.Consumer
	snapshots store.MetricStore
	center    *notification.Center
	logger    *slog.Logger
}

// NewService creates a feed consumer service.
func NewService(
	consumer queue.Consumer,
	snapshots store.MetricStore,
	center *notification.Center,
	logger *slog.Logger,
) *Service {
	return &Service{
		consumer:  consumer,
		snapshots: snapshots,
		center:    center,
		logger:    logger,
	}
}

// Start consumes until the context is canceled. Blocking.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("feed consumer started")
	return s.consumer.Start(ctx, s.handle)
}

// handle processes one queue message. It always returns nil: a payload
// that cannot be processed is dropped, not redelivered.
func (s *Service) handle(ctx context.Context, msg *queue.Message) error {
	var envelope domain.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		s.logger.Warn("dropping malformed envelope", "error", err)
		metrics.FeedEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	kind := string(envelope.Kind)
	if err := s.dispatch(ctx, &envelope); err != nil {
		s.logger.Warn("dropping unprocessable envelope", "kind", kind, "error", err)
		metrics.FeedEventsTotal.WithLabelValues(kind, "malformed").Inc()
		return nil
	}

	metrics.FeedEventsTotal.WithLabelValues(kind, "processed").Inc()
	return nil
}

func (s *Service) dispatch(ctx context.Context, envelope *domain.Envelope) error {
	switch envelope.Kind {
	case domain.KindMetricRefresh:
		var snap domain.MetricSnapshot
		if err := json.Unmarshal(envelope.Payload, &snap); err != nil {
			return err
		}
		if err := snap.Validate(); err != nil {
			return err
		}
		return s.snapshots.Upsert(ctx, &snap)

	case domain.KindPregnancyUpdate:
		var update domain.PregnancyUpdate
		if err := json.Unmarshal(envelope.Payload, &update); err != nil {
			return err
		}
		if err := update.Validate(); err != nil {
			return err
		}
		s.center.AddPregnancyUpdate(&update)
		return nil

	case domain.KindDevelopmentAlert:
		var alert domain.DevelopmentAlert
		if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
			return err
		}
		if err := alert.Validate(); err != nil {
			return err
		}
		s.center.AddDevelopmentAlert(&alert)
		return nil

	case domain.KindTransferAlert:
		var alert domain.TransferAlert
		if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
			return err
		}
		if err := alert.Validate(); err != nil {
			return err
		}
		s.center.AddTransferAlert(alert.TransferID, alert.Message, alert.Priority)
		return nil

	case domain.KindSystemNote:
		var note domain.SystemNote
		if err := json.Unmarshal(envelope.Payload, &note); err != nil {
			return err
		}
		if err := note.Validate(); err != nil {
			return err
		}
		title := note.Title
		if title == "" {
			title = "System Update"
		}
		s.center.Add(&domain.Notification{
			Type:     domain.NotificationInfo,
			Title:    title,
			Message:  note.Message,
			Priority: domain.PriorityLow,
			Category: domain.CategorySystem,
		})
		return nil

	default:
		return domain.ErrUnknownEventKind
	}
}
