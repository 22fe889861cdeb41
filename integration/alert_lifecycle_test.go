package integration

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"labwatch/internal/alerting"
	"labwatch/internal/clock"
	"labwatch/internal/dispatch"
	"labwatch/internal/domain"
	"labwatch/internal/evaluator"
	"labwatch/internal/feed"
	"labwatch/internal/ingest"
	"labwatch/internal/notification"
	"labwatch/internal/queue"
	memoryqueue "labwatch/internal/queue/memory"
	memorystor "labwatch/internal/store/memory"
)

// Wires the full in-memory stack: queue, feed consumer, metric store,
// rule evaluator, alert service, dispatcher and notification center.
var _ = Describe("Alert Lifecycle Integration", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		clk       *clock.Fake
		alertRepo *memorystor.AlertRepository
		ruleRepo  *memorystor.RuleRepository
		snapshots *memorystor.MetricStore
		memQueue  *memoryqueue.Queue
		alertSvc  *alerting.Service
		center    *notification.Center
		disp      *dispatch.Dispatcher
		eval      *evaluator.Evaluator
		ingestSvc *ingest.Service
		feedSvc   *feed.Service
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		clk = clock.NewFake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		alertRepo = memorystor.NewAlertRepository()
		ruleRepo = memorystor.NewRuleRepository()
		snapshots = memorystor.NewMetricStore()
		memQueue = memoryqueue.NewQueue(100)

		for _, rule := range domain.DefaultRules(clk.Now()) {
			Expect(ruleRepo.Create(ctx, rule)).To(Succeed())
		}

		alertSvc = alerting.NewService(alertRepo, clk, logger)
		center = notification.NewCenter(clk, notification.DefaultCapacity, time.Minute, logger)
		disp = dispatch.New(center, alertSvc, nil, logger)
		eval = evaluator.New(ruleRepo, snapshots, alertSvc, disp, clk, time.Second, logger)
		ingestSvc = ingest.NewService(memQueue, clk, logger)
		feedSvc = feed.NewService(memQueue, snapshots, center, logger)

		go func() {
			defer GinkgoRecover()
			_ = feedSvc.Start(ctx)
		}()
	})

	AfterEach(func() {
		disp.Close()
		cancel()
		_ = memQueue.Close()
	})

	Context("when a metric breaching a threshold is ingested", func() {
		It("raises one alert, dedupes repeats, and resolves through an action", func() {
			// 1. Push a low stock snapshot through the feed
			Expect(ingestSvc.IngestMetric(ctx, &domain.MetricSnapshot{
				ItemID:       "item-1",
				ItemName:     "DMEM Culture Media",
				Category:     "MEDIA",
				CurrentStock: 750,
				MinLevel:     1000,
				SafetyStock:  500,
			})).To(Succeed())

			Eventually(func() error {
				_, err := snapshots.Get(ctx, "item-1")
				return err
			}, 2*time.Second, 10*time.Millisecond).Should(Succeed())

			// 2. Evaluate rules and verify the low stock alert
			eval.EvaluateAll(ctx)

			alerts, err := alertSvc.GetAlerts(ctx, domain.AlertFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(HaveLen(1))
			Expect(alerts[0].Type).To(Equal(domain.AlertTypeLowStock))
			Expect(alerts[0].Severity).To(Equal(domain.SeverityMedium))
			Expect(alerts[0].ItemID).To(Equal("item-1"))
			Expect(alerts[0].IsResolved).To(BeFalse())

			// 3. The in-app channel posts into the notification center
			Expect(center.GetNotifications()).NotTo(BeEmpty())

			// 4. Re-evaluating must not duplicate the open alert
			eval.EvaluateAll(ctx)
			eval.EvaluateAll(ctx)

			alerts, err = alertSvc.GetAlerts(ctx, domain.AlertFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(HaveLen(1))

			// 5. Executing the purchase order action resolves the alert
			clk.Advance(10 * time.Minute)
			Expect(alertSvc.ExecuteAction(ctx, alerts[0].ID, "create-po", map[string]string{"actor": "tech.patel"})).To(BeTrue())

			resolved, err := alertSvc.GetAlert(ctx, alerts[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.IsResolved).To(BeTrue())
			Expect(resolved.ResolvedBy).To(Equal("tech.patel"))

			// 6. Once resolved, a still-breaching metric re-raises
			eval.EvaluateAll(ctx)

			open, err := alertSvc.GetAlerts(ctx, domain.AlertFilter{Open: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(HaveLen(1))
			Expect(open[0].ID).NotTo(Equal(resolved.ID))
		})

		It("does not raise when the metric recovers", func() {
			Expect(ingestSvc.IngestMetric(ctx, &domain.MetricSnapshot{
				ItemID:       "item-1",
				ItemName:     "DMEM Culture Media",
				Category:     "MEDIA",
				CurrentStock: 3000,
				MinLevel:     1000,
				SafetyStock:  500,
			})).To(Succeed())

			Eventually(func() error {
				_, err := snapshots.Get(ctx, "item-1")
				return err
			}, 2*time.Second, 10*time.Millisecond).Should(Succeed())

			eval.EvaluateAll(ctx)

			alerts, err := alertSvc.GetAlerts(ctx, domain.AlertFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(BeEmpty())
		})

		It("raises both low and critical alerts when stock is under the safety floor", func() {
			Expect(ingestSvc.IngestMetric(ctx, &domain.MetricSnapshot{
				ItemID:       "item-3",
				ItemName:     "Liquid Nitrogen",
				Category:     "CRYOGENIC",
				CurrentStock: 40,
				MinLevel:     200,
				SafetyStock:  50,
			})).To(Succeed())

			Eventually(func() error {
				_, err := snapshots.Get(ctx, "item-3")
				return err
			}, 2*time.Second, 10*time.Millisecond).Should(Succeed())

			eval.EvaluateAll(ctx)

			alerts, err := alertSvc.GetAlerts(ctx, domain.AlertFilter{Open: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(HaveLen(2))

			critical, err := alertSvc.GetCriticalAlerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(critical).To(HaveLen(1))
			Expect(critical[0].Type).To(Equal(domain.AlertTypeCriticalStock))
		})
	})

	Context("when domain events arrive on the feed", func() {
		It("routes a pregnancy update to the notification center", func() {
			payload, err := json.Marshal(&domain.PregnancyUpdate{
				TransferID:   "ET-2025-001",
				CheckupDay:   30,
				Result:       domain.PregnancyPositive,
				Notes:        "Strong heartbeat detected",
				Veterinarian: "Dr. Sarah Ahmed",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(ingestSvc.IngestEnvelope(ctx, &domain.Envelope{
				Kind:    domain.KindPregnancyUpdate,
				Payload: payload,
			})).To(Succeed())

			Eventually(func() int {
				return len(center.ByCategory(domain.CategoryPregnancy))
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			notifications := center.ByCategory(domain.CategoryPregnancy)
			Expect(notifications[0].Title).To(ContainSubstring("Pregnancy Check"))
			Expect(notifications[0].Message).To(ContainSubstring("ET-2025-001"))
			Expect(notifications[0].IsRead).To(BeFalse())
		})

		It("drops malformed envelopes without stalling the consumer", func() {
			Expect(memQueue.Publish(ctx, &queue.Message{Key: []byte("bad"), Value: []byte("not json at all")})).To(Succeed())

			payload, err := json.Marshal(&domain.SystemNote{
				Title:   "Backup Complete",
				Message: "Daily database backup completed successfully",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(ingestSvc.IngestEnvelope(ctx, &domain.Envelope{
				Kind:    domain.KindSystemNote,
				Payload: payload,
			})).To(Succeed())

			// The valid envelope behind the malformed one still lands
			Eventually(func() int {
				return len(center.ByCategory(domain.CategorySystem))
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
		})
	})
})
