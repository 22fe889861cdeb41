package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"labwatch/internal/clock"
	"labwatch/internal/domain"
	"labwatch/internal/notification"
	"labwatch/internal/queue"
	storememory "labwatch/internal/store/memory"
)

type fixture struct {
	service   *Service
	snapshots *storememory.MetricStore
	center    *notification.Center
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	snapshots := storememory.NewMetricStore()
	center := notification.NewCenter(clk, 0, time.Minute, logger)

	return &fixture{
		// The consumer is exercised via handle directly; no queue needed.
		service:   NewService(nil, snapshots, center, logger),
		snapshots: snapshots,
		center:    center,
	}
}

func envelopeMessage(t *testing.T, kind domain.EventKind, payload any) *queue.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	value, err := json.Marshal(&domain.Envelope{Kind: kind, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &queue.Message{Value: value}
}

func TestHandle_MetricRefreshUpserts(t *testing.T) {
	f := newFixture(t)

	msg := envelopeMessage(t, domain.KindMetricRefresh, &domain.MetricSnapshot{
		ItemID:       "item-1",
		ItemName:     "DMEM Medium",
		CurrentStock: 750,
		MinLevel:     1000,
	})

	if err := f.service.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	snap, err := f.snapshots.Get(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if snap.CurrentStock != 750 {
		t.Errorf("CurrentStock = %g, want 750", snap.CurrentStock)
	}
}

func TestHandle_PregnancyUpdateFeedsCenter(t *testing.T) {
	f := newFixture(t)

	msg := envelopeMessage(t, domain.KindPregnancyUpdate, &domain.PregnancyUpdate{
		TransferID: "TR-042",
		CheckupDay: 28,
		Result:     domain.PregnancyPositive,
	})

	if err := f.service.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	feed := f.center.GetNotifications()
	if len(feed) != 1 {
		t.Fatalf("got %d notifications, want 1", len(feed))
	}
	if feed[0].Category != domain.CategoryPregnancy {
		t.Errorf("Category = %s, want pregnancy", feed[0].Category)
	}
}

func TestHandle_TransferAlertFeedsCenter(t *testing.T) {
	f := newFixture(t)

	msg := envelopeMessage(t, domain.KindTransferAlert, &domain.TransferAlert{
		TransferID: "TR-100",
		Message:    "recipient temperature elevated",
		Priority:   domain.PriorityHigh,
	})

	if err := f.service.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	feed := f.center.GetNotifications()
	if len(feed) != 1 || feed[0].Category != domain.CategoryTransfer {
		t.Fatalf("transfer alert not delivered: %+v", feed)
	}
}

func TestHandle_SystemNoteFeedsCenter(t *testing.T) {
	f := newFixture(t)

	msg := envelopeMessage(t, domain.KindSystemNote, &domain.SystemNote{
		Message: "Data backup completed successfully",
	})

	if err := f.service.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	feed := f.center.GetNotifications()
	if len(feed) != 1 {
		t.Fatalf("got %d notifications, want 1", len(feed))
	}
	if feed[0].Title != "System Update" {
		t.Errorf("Title = %q, want default System Update", feed[0].Title)
	}
	if feed[0].Priority != domain.PriorityLow {
		t.Errorf("Priority = %s, want low", feed[0].Priority)
	}
}

func TestHandle_MalformedIsSkippedNotRedelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *queue.Message
	}{
		{name: "not json", msg: &queue.Message{Value: []byte("not-json")}},
		{name: "unknown kind", msg: envelopeMessage(t, "mystery", struct{}{})},
		{
			name: "payload fails validation",
			msg:  envelopeMessage(t, domain.KindPregnancyUpdate, &domain.PregnancyUpdate{Result: "MAYBE"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// nil means the message is committed and never redelivered.
			if err := f.service.handle(ctx, tt.msg); err != nil {
				t.Errorf("handle should swallow malformed input, got %v", err)
			}
		})
	}

	if got := len(f.center.GetNotifications()); got != 0 {
		t.Errorf("malformed messages produced %d notifications", got)
	}
}
