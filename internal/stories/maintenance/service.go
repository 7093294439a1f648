// Package maintenance holds operator actions that run over the whole
// subscription store rather than a single relay event.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/subs"
)

const pageSize = 100

var ErrForbidden = errors.New("caller is not the administrator")

type Report struct {
	Users   int `json:"users"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type Service struct {
	storage    Storage
	chats      chat.Factory
	callbacks  CallbackURLs
	adminEmail string
	logger     *slog.Logger
}

func NewService(storage Storage, chats chat.Factory, callbacks CallbackURLs, adminEmail string, logger *slog.Logger) *Service {
	return &Service{
		storage:    storage,
		chats:      chats,
		callbacks:  callbacks,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     logger,
	}
}

// Authorize resolves credential's owner and checks it against the
// configured administrator address. No admin configured means nobody is.
func (s *Service) Authorize(ctx context.Context, credential string) (*chat.User, error) {
	if credential == "" {
		return nil, subs.ErrNoCredential
	}

	me, err := s.chats.WithCredential(credential).Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("identify caller: %w", err)
	}

	if s.adminEmail == "" || !strings.EqualFold(me.Email, s.adminEmail) {
		s.logger.Warn("Rejected admin action", "user_id", me.ID, "email", me.Email)
		return nil, ErrForbidden
	}

	return me, nil
}

// ResetCallbackURLs points every relay bot at the current public URL. Bots
// are recognised by their callback path, so ones registered under an old
// host are found too. A failing user is counted and skipped.
func (s *Service) ResetCallbackURLs(ctx context.Context, adminCredential string) (Report, error) {
	var report Report

	admin, err := s.Authorize(ctx, adminCredential)
	if err != nil {
		return report, err
	}
	s.logger.Info("Resetting callback URLs", "admin", admin.Email)

	for offset := 0; ; offset += pageSize {
		page, err := s.storage.ListSubscriptions(ctx, subs.ListCriteria{Limit: pageSize, Offset: offset})
		if err != nil {
			return report, fmt.Errorf("list subscriptions: %w", err)
		}

		for _, sub := range page {
			report.Users++
			updated, err := s.resetUser(ctx, sub)
			report.Updated += updated
			if err != nil {
				report.Failed++
				s.logger.Warn("Failed to reset callback URLs", "user_id", sub.UserID, "error", err)
			}
		}

		if len(page) < pageSize {
			break
		}
	}

	s.logger.Info("Callback URLs reset",
		"users", report.Users,
		"updated", report.Updated,
		"failed", report.Failed)

	return report, nil
}

func (s *Service) resetUser(ctx context.Context, sub *subs.Subscription) (int, error) {
	client := s.chats.WithCredential(sub.Credential)

	bots, err := client.Bots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bots: %w", err)
	}

	want := s.callbacks.IncomingURL(sub.UserID)
	updated := 0
	for _, bot := range bots {
		if bot.CallbackURL == want || !s.callbacks.OwnsCallback(bot.CallbackURL, sub.UserID) {
			continue
		}

		bot.CallbackURL = want
		if err := client.UpdateBot(ctx, bot); err != nil {
			return updated, fmt.Errorf("update bot %s: %w", bot.ID, err)
		}
		updated++
		s.logger.Debug("Bot callback updated", "user_id", sub.UserID, "bot_id", bot.ID, "group_id", bot.GroupID)
	}

	return updated, nil
}
