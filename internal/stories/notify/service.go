package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"groupmemail/internal/metrics"
	"groupmemail/internal/stories/mail"
	"groupmemail/internal/stories/subs"
)

const expirationLayout = "02 January 2006"

// Service sends each failure notice at most once per occurrence, tracked by
// the subscription's notified flags.
type Service struct {
	storage Storage
	mailer  mail.Sender
	catalog *Catalog
	homeURL string
	logger  *slog.Logger
}

func NewService(storage Storage, mailer mail.Sender, catalog *Catalog, homeURL string, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		mailer:  mailer,
		catalog: catalog,
		homeURL: homeURL,
		logger:  logger,
	}
}

// NotifyBadCredential tells the subscriber their stored credential was
// rejected. It reports whether a notice was sent.
func (s *Service) NotifyBadCredential(ctx context.Context, sub *subs.Subscription) (bool, error) {
	if sub.BadCredentialNotified {
		return false, nil
	}

	if err := s.send(ctx, KindBadCredential, sub); err != nil {
		return false, err
	}

	// The notice is out; a failed flag write only risks a duplicate later.
	if _, err := s.storage.UpdateSubscription(ctx, sub.UserID, subs.UpdateParams{
		BadCredentialNotified: lo.ToPtr(true),
	}); err != nil {
		return true, fmt.Errorf("persist bad credential flag: %w", err)
	}
	sub.BadCredentialNotified = true

	return true, nil
}

// NotifyExpiration tells the subscriber their service has lapsed. It
// reports whether a notice was sent.
func (s *Service) NotifyExpiration(ctx context.Context, sub *subs.Subscription) (bool, error) {
	if sub.ExpirationNotified {
		return false, nil
	}

	if err := s.send(ctx, KindExpiration, sub); err != nil {
		return false, err
	}

	if _, err := s.storage.UpdateSubscription(ctx, sub.UserID, subs.UpdateParams{
		ExpirationNotified: lo.ToPtr(true),
	}); err != nil {
		return true, fmt.Errorf("persist expiration flag: %w", err)
	}
	sub.ExpirationNotified = true

	return true, nil
}

func (s *Service) send(ctx context.Context, kind Kind, sub *subs.Subscription) error {
	subject, html, err := s.catalog.render(kind, noticeData{
		Email:      sub.Email,
		Expiration: sub.Expiration.Format(expirationLayout),
		HomeURL:    s.homeURL,
	})
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, mail.Message{
		To:      sub.Email,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		s.logger.Error("Failed to send notice",
			"kind", kind,
			"user_id", sub.UserID,
			"error", err)
		return fmt.Errorf("send %s notice: %w", kind, err)
	}

	metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	s.logger.Info("Notice sent", "kind", kind, "user_id", sub.UserID, "email", sub.Email)
	return nil
}
