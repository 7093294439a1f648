package environment

import (
	"context"
	"log/slog"
	"time"

	"groupmemail/internal/config"
	"groupmemail/internal/infra/groupme"
	"groupmemail/internal/infra/mailgun"
	"groupmemail/internal/infra/sqldb"
)

type Clients struct {
	DB      *sqldb.DB
	GroupMe *groupme.Client
	Mailgun *mailgun.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	db, err := provideDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Clients{
		DB:      db,
		GroupMe: provideGroupMe(cfg, logger),
		Mailgun: provideMailgun(cfg, logger),
	}, nil
}

func provideDB(ctx context.Context, cfg config.Config) (*sqldb.DB, error) {
	maxLifetimeStr := cfg.DB.MaxLifetime
	if maxLifetimeStr == "" {
		maxLifetimeStr = "5m"
	}
	maxLifetime, err := time.ParseDuration(maxLifetimeStr)
	if err != nil {
		return nil, err
	}

	opts := []sqldb.Option{
		sqldb.WithDriver(cfg.DB.Driver),
		sqldb.WithDSN(cfg.DB.DSN),
		sqldb.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		sqldb.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		sqldb.WithConnMaxLifetime(maxLifetime),
	}

	return sqldb.New(ctx, opts...)
}

func provideGroupMe(cfg config.Config, logger *slog.Logger) *groupme.Client {
	return groupme.NewClient(
		cfg.GroupMe.APIURL,
		cfg.GroupMe.Timeout,
		logger.With("client", "groupme"),
		groupme.WithRateLimit(cfg.GroupMe.RateLimit.RPS, cfg.GroupMe.RateLimit.Burst),
	)
}

func provideMailgun(cfg config.Config, logger *slog.Logger) *mailgun.Client {
	return mailgun.NewClient(
		cfg.Mailgun.APIURL,
		cfg.Mailgun.Domain,
		cfg.Mailgun.APIKey,
		cfg.Mailgun.Sender,
		cfg.Mailgun.Timeout,
		logger.With("client", "mailgun"),
	)
}
