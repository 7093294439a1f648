package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"groupmemail/internal/metrics"
)

// Worker periodically publishes subscription counts as gauges.
type Worker struct {
	storage  Storage
	schedule string
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewWorker(storage Storage, schedule string, now func() time.Time, logger *slog.Logger) *Worker {
	return &Worker{
		storage:  storage,
		schedule: schedule,
		now:      now,
		logger:   logger,
		cron:     cron.New(),
	}
}

func (w *Worker) Name() string {
	return "stats"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.Run(context.Background()); err != nil {
			w.logger.Error("Stats worker failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stats worker: %w", err)
	}

	w.cron.Start()

	// publish once so the gauges are not empty until the first tick
	go func() {
		if err := w.Run(context.Background()); err != nil {
			w.logger.Error("Stats worker failed", "error", err)
		}
	}()

	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) Run(ctx context.Context) error {
	stats, err := w.storage.CountSubscriptions(ctx, w.now())
	if err != nil {
		return fmt.Errorf("count subscriptions: %w", err)
	}

	metrics.Subscriptions.WithLabelValues("total").Set(float64(stats.Total))
	metrics.Subscriptions.WithLabelValues("active").Set(float64(stats.Active))
	metrics.Subscriptions.WithLabelValues("expired").Set(float64(stats.Expired))
	metrics.Subscriptions.WithLabelValues("ignored").Set(float64(stats.Ignored))
	metrics.Subscriptions.WithLabelValues("bad_credential").Set(float64(stats.BadCredential))

	w.logger.Debug("Subscription gauges updated",
		"total", stats.Total,
		"active", stats.Active,
		"expired", stats.Expired)

	return nil
}
