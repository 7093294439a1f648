package expiration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"groupmemail/internal/stories/subs"
)

const batchSize = 100

// Worker sends the expiration notice to lapsed subscribers who have not
// received it yet, so quiet groups do not keep a user uninformed. It shares
// the notified flag with the relay, so each lapse is announced once.
type Worker struct {
	storage  Storage
	notifier Notifier
	schedule string
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewWorker(storage Storage, notifier Notifier, schedule string, now func() time.Time, logger *slog.Logger) *Worker {
	return &Worker{
		storage:  storage,
		notifier: notifier,
		schedule: schedule,
		now:      now,
		logger:   logger,
		cron:     cron.New(),
	}
}

func (w *Worker) Name() string {
	return "expiration"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.logger.Info("Running expiration worker")
		if _, err := w.Run(context.Background()); err != nil {
			w.logger.Error("Expiration worker failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule expiration worker: %w", err)
	}

	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

// Run notifies one pass of lapsed subscribers and returns how many notices
// went out.
func (w *Worker) Run(ctx context.Context) (int, error) {
	now := w.now()
	sent := 0

	// Notified rows drop out of the filter, so failed ones are skipped by offset.
	offset := 0
	for {
		batch, err := w.storage.ListSubscriptions(ctx, subs.ListCriteria{
			Ignored:            lo.ToPtr(false),
			ExpirationNotified: lo.ToPtr(false),
			ExpiredAt:          &now,
			Limit:              batchSize,
			Offset:             offset,
		})
		if err != nil {
			return sent, fmt.Errorf("list expired subscriptions: %w", err)
		}

		for _, sub := range batch {
			ok, err := w.notifier.NotifyExpiration(ctx, sub)
			if err != nil {
				w.logger.Error("Failed to notify expiration", "user_id", sub.UserID, "error", err)
			}
			if ok {
				sent++
			}
			if !sub.ExpirationNotified {
				offset++
			}
		}

		if len(batch) < batchSize {
			break
		}
	}

	w.logger.Info("Expiration worker finished", "notified", sent)
	return sent, nil
}
