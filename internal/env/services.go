package environment

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"groupmemail/internal/api"
	"groupmemail/internal/config"
	"groupmemail/internal/links"
	"groupmemail/internal/storage"
	"groupmemail/internal/stories/maintenance"
	"groupmemail/internal/stories/notify"
	"groupmemail/internal/stories/relay"
	"groupmemail/internal/stories/subs"
	"groupmemail/internal/workers"
	"groupmemail/internal/workers/expiration"
	"groupmemail/internal/workers/stats"
)

type Services struct {
	Subscriptions *subs.Service
	Notifier      *notify.Service
	Relay         *relay.Service
	Maintenance   *maintenance.Service
	Router        *api.Router
	Workers       *workers.Manager
}

func newServices(ctx context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	storageImpl := storage.New(clients.DB.DB)

	version, err := storageImpl.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}
	logger.Info("Database schema ready", "driver", clients.DB.DriverName(), "version", version)

	linkBuilder := links.NewBuilder(cfg.PublicURL, cfg.GroupMe.WebURL)

	catalog, err := notify.NewCatalog()
	if err != nil {
		return nil, errors.Wrap(err, "load notice catalog")
	}

	s.Notifier = notify.NewService(
		storageImpl,
		clients.Mailgun,
		catalog,
		cfg.PublicURL,
		logger.With("story", "notify"),
	)

	s.Subscriptions = subs.NewService(
		storageImpl,
		clients.GroupMe,
		linkBuilder,
		cfg.GroupMe.BotName,
		time.Now,
		logger.With("story", "subs"),
	)

	s.Relay = relay.NewService(
		storageImpl,
		clients.GroupMe,
		s.Notifier,
		clients.Mailgun,
		linkBuilder,
		relay.Config{
			ReplyPrefix: cfg.Mailgun.ReplyPrefix,
			ReplyDomain: cfg.Mailgun.Domain,
		},
		time.Now,
		logger.With("story", "relay"),
	)

	s.Maintenance = maintenance.NewService(
		storageImpl,
		clients.GroupMe,
		linkBuilder,
		cfg.AdminEmail,
		logger.With("story", "maintenance"),
	)
	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set, admin routes are disabled")
	}

	s.Router = api.NewRouter(
		s.Relay,
		s.Subscriptions,
		s.Maintenance,
		cfg.BillingSecret,
		time.Now,
		logger.WithGroup("http"),
	)

	jobs := []workers.Worker{
		stats.NewWorker(storageImpl, cfg.Workers.StatsSchedule, time.Now, logger.With("worker", "stats")),
	}
	if cfg.Workers.ExpirationSchedule != "" {
		jobs = append(jobs, expiration.NewWorker(
			storageImpl,
			s.Notifier,
			cfg.Workers.ExpirationSchedule,
			time.Now,
			logger.With("worker", "expiration"),
		))
	}
	s.Workers = workers.NewManager(logger, jobs...)

	return &s, nil
}
