package subs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"groupmemail/internal/address"
	"groupmemail/internal/stories/chat"
)

var (
	ErrNoCredential = errors.New("no credential presented")
	ErrNoEmail      = errors.New("chat account has no email address")
	ErrInvalidDays  = errors.New("extension must be a positive number of days")
)

const statusDateLayout = "02 January 2006"

// Service implements the subscription front door: the operations a user
// triggers with a freshly presented credential, plus the billing and
// operator hooks over the same store.
type Service struct {
	storage   Storage
	chats     chat.Factory
	callbacks CallbackURLs
	botName   string
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(
	storage Storage,
	chats chat.Factory,
	callbacks CallbackURLs,
	botName string,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		chats:     chats,
		callbacks: callbacks,
		botName:   botName,
		now:       now,
		logger:    logger,
	}
}

// Status describes a user's service window for display.
type Status struct {
	User         *chat.User
	Subscription *Subscription
	Message      string
}

// Reconcile identifies the owner of credential and, if they are subscribed
// with a different stored credential, persists the presented one.
func (s *Service) Reconcile(ctx context.Context, credential string) (*chat.User, *Subscription, error) {
	if credential == "" {
		return nil, nil, ErrNoCredential
	}

	me, err := s.chats.WithCredential(credential).Me(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("identify user: %w", err)
	}

	sub, err := s.storage.GetSubscription(ctx, GetCriteria{UserID: &me.ID})
	if err != nil {
		return nil, nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil || sub.Credential == credential {
		return me, sub, nil
	}

	s.logger.Info("Storing refreshed credential", "user_id", me.ID)
	updated, err := s.storage.UpdateSubscription(ctx, me.ID, UpdateParams{
		Credential:            &credential,
		BadCredentialNotified: lo.ToPtr(false),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store credential: %w", err)
	}

	return me, updated, nil
}

// Subscribe starts relaying groupID to the credential owner's email,
// creating their subscription with a trial period on first use.
// An expired subscription is returned without registering a bot.
func (s *Service) Subscribe(ctx context.Context, credential, groupID string) (*Subscription, error) {
	me, sub, err := s.Reconcile(ctx, credential)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		sub, err = s.create(ctx, me, credential)
		if err != nil {
			return nil, err
		}
	}

	if sub.Expired(s.now()) {
		s.logger.Info("Not registering bot for expired subscription",
			"user_id", sub.UserID,
			"group_id", groupID,
			"expiration", sub.Expiration)
		return sub, nil
	}

	bot, err := s.chats.WithCredential(credential).CreateBot(ctx, s.botName, groupID, s.callbacks.IncomingURL(sub.UserID))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	s.logger.Info("Subscribed to group",
		"user_id", sub.UserID,
		"group_id", groupID,
		"bot_id", bot.ID)

	return sub, nil
}

func (s *Service) create(ctx context.Context, me *chat.User, credential string) (*Subscription, error) {
	if me.Email == "" {
		return nil, ErrNoEmail
	}

	sub, err := s.storage.CreateSubscription(ctx, Subscription{
		UserID:     me.ID,
		Email:      address.Canonicalize(me.Email),
		Credential: credential,
		Expiration: s.now().AddDate(0, 0, DefaultTrialDays),
	})
	if errors.Is(err, ErrAlreadyExists) {
		// a concurrent subscribe won the insert
		return s.storage.GetSubscription(ctx, GetCriteria{UserID: &me.ID})
	}
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.logger.Info("Subscription created", "user_id", sub.UserID, "expiration", sub.Expiration)
	return sub, nil
}

// Unsubscribe removes the credential owner's relay bots from groupID and
// returns how many were destroyed.
func (s *Service) Unsubscribe(ctx context.Context, credential, groupID string) (int, error) {
	me, _, err := s.Reconcile(ctx, credential)
	if err != nil {
		return 0, err
	}

	client := s.chats.WithCredential(credential)
	bots, err := client.Bots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bots: %w", err)
	}

	owned := lo.Filter(bots, func(bot chat.Bot, _ int) bool {
		return bot.GroupID == groupID && s.callbacks.OwnsCallback(bot.CallbackURL, me.ID)
	})

	for _, bot := range owned {
		if err := client.DestroyBot(ctx, bot.ID); err != nil {
			return 0, fmt.Errorf("destroy bot %s: %w", bot.ID, err)
		}
	}

	s.logger.Info("Unsubscribed from group", "user_id", me.ID, "group_id", groupID, "bots", len(owned))
	return len(owned), nil
}

func (s *Service) Status(ctx context.Context, credential string) (*Status, error) {
	me, sub, err := s.Reconcile(ctx, credential)
	if err != nil {
		return nil, err
	}

	return &Status{
		User:         me,
		Subscription: sub,
		Message:      StatusMessage(sub, s.now()),
	}, nil
}

func StatusMessage(sub *Subscription, now time.Time) string {
	if sub == nil {
		return fmt.Sprintf("Subscribe to a group to get free service for %d days.", DefaultTrialDays)
	}
	date := sub.Expiration.Format(statusDateLayout)
	if sub.Expired(now) {
		return fmt.Sprintf("Your GroupMemail service expired on %s.", date)
	}
	return fmt.Sprintf("Your GroupMemail service will expire on %s.", date)
}

// Extend lengthens userID's service by days. Called once a payment is captured.
func (s *Service) Extend(ctx context.Context, userID string, days int) (*Subscription, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}

	sub, err := s.storage.ExtendSubscription(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("extend subscription: %w", err)
	}

	s.logger.Info("Subscription extended", "user_id", userID, "days", days, "expiration", sub.Expiration)
	return sub, nil
}

func (s *Service) SetIgnored(ctx context.Context, userID string, ignored bool) (*Subscription, error) {
	sub, err := s.storage.UpdateSubscription(ctx, userID, UpdateParams{Ignored: &ignored})
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	s.logger.Info("Subscription ignore flag changed", "user_id", userID, "ignored", ignored)
	return sub, nil
}

// AddAltEmail lets userID reply from altEmail in addition to their primary address.
func (s *Service) AddAltEmail(ctx context.Context, userID, altEmail string) error {
	sub, err := s.storage.GetSubscription(ctx, GetCriteria{UserID: &userID})
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return ErrNotFound
	}

	alt := address.Canonicalize(altEmail)
	if alt == sub.Email {
		return nil
	}

	if err := s.storage.AddAltEmail(ctx, alt, sub.Email); err != nil {
		return fmt.Errorf("add alt email: %w", err)
	}
	return nil
}
