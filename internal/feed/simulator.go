package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"labwatch/internal/config"
	"labwatch/internal/domain"
	"labwatch/internal/ingest"
)

// Simulator publishes synthetic feed events through the ingest service.
// It stands in for the real lab feed in memory mode: each generator ticks
// on its own interval and fires with a fixed probability, so the feed
// stays sparse and irregular like real checkup traffic.
type Simulator struct {
	ingest *ingest.Service
	cfg    config.SimulatorConfig
	rng    *rand.Rand
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSimulator creates a simulator publishing via the given ingest service.
func NewSimulator(svc *ingest.Service, cfg config.SimulatorConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		ingest: svc,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// Firing probabilities per tick, matching the observed cadence of the
// real feed.
const (
	pregnancyChance   = 0.10
	developmentChance = 0.05
	systemChance      = 0.03
)

// Start launches the generators. Idempotent.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.Info("feed simulator started",
		"pregnancy_interval", s.cfg.PregnancyInterval,
		"development_interval", s.cfg.DevelopmentInterval,
		"system_interval", s.cfg.SystemInterval,
	)
}

// Stop halts the generators. Idempotent.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.logger.Info("feed simulator stopped")
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	pregnancy := time.NewTicker(s.cfg.PregnancyInterval)
	development := time.NewTicker(s.cfg.DevelopmentInterval)
	system := time.NewTicker(s.cfg.SystemInterval)
	defer pregnancy.Stop()
	defer development.Stop()
	defer system.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pregnancy.C:
			if s.roll(pregnancyChance) {
				s.publish(ctx, domain.KindPregnancyUpdate, s.pregnancyUpdate())
			}
		case <-development.C:
			if s.roll(developmentChance) {
				s.publish(ctx, domain.KindDevelopmentAlert, s.developmentAlert())
			}
		case <-system.C:
			if s.roll(systemChance) {
				s.publish(ctx, domain.KindSystemNote, s.systemNote())
			}
		}
	}
}

func (s *Simulator) roll(chance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < chance
}

func (s *Simulator) pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Simulator) publish(ctx context.Context, kind domain.EventKind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal simulated event", "kind", kind, "error", err)
		return
	}

	envelope := &domain.Envelope{Kind: kind, Payload: raw}
	if err := s.ingest.IngestEnvelope(ctx, envelope); err != nil {
		s.logger.Error("failed to publish simulated event", "kind", kind, "error", err)
	}
}

func (s *Simulator) pregnancyUpdate() *domain.PregnancyUpdate {
	transferIDs := []string{"ET-2025-001", "ET-2025-002", "ET-2025-003", "ET-2025-004"}
	results := []domain.PregnancyResult{
		domain.PregnancyPositive, domain.PregnancyNegative, domain.PregnancyPending,
	}
	days := []int{15, 30, 45, 60}

	result := results[s.pick(len(results))]
	notes := "Scheduled for follow-up"
	var nextCheck *time.Time
	switch result {
	case domain.PregnancyPositive:
		notes = "Strong heartbeat detected"
		t := time.Now().Add(15 * 24 * time.Hour)
		nextCheck = &t
	case domain.PregnancyNegative:
		notes = "No pregnancy detected"
	}

	return &domain.PregnancyUpdate{
		TransferID:    transferIDs[s.pick(len(transferIDs))],
		RecipientID:   fmt.Sprintf("R-%03d", s.pick(1000)),
		CheckupDay:    days[s.pick(len(days))],
		Result:        result,
		Notes:         notes,
		NextCheckDate: nextCheck,
		Veterinarian:  "Dr. Sarah Ahmed",
	}
}

func (s *Simulator) developmentAlert() *domain.DevelopmentAlert {
	sessionIDs := []string{"FS-2025-001", "FS-2025-002", "FS-2025-003"}
	issues := []domain.DevelopmentIssue{
		domain.IssueSlowDevelopment, domain.IssueAbnormalMorphology, domain.IssueTemperatureDeviation,
	}
	severities := []domain.Priority{
		domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh,
	}

	return &domain.DevelopmentAlert{
		SessionID:         sessionIDs[s.pick(len(sessionIDs))],
		EmbryoID:          fmt.Sprintf("EMB-%03d", s.pick(100)),
		Issue:             issues[s.pick(len(issues))],
		Severity:          severities[s.pick(len(severities))],
		Description:       "Development parameters outside normal range",
		RecommendedAction: "Monitor closely and consider intervention",
	}
}

func (s *Simulator) systemNote() *domain.SystemNote {
	messages := []string{
		"Incubator temperature stabilized",
		"New embryo transfer scheduled",
		"Weekly report available",
		"Equipment maintenance completed",
		"Data backup completed successfully",
	}

	return &domain.SystemNote{
		Title:   "System Update",
		Message: messages[s.pick(len(messages))],
	}
}
