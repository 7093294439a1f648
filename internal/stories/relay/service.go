package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"groupmemail/internal/address"
	"groupmemail/internal/metrics"
	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/mail"
	"groupmemail/internal/stories/subs"
)

const tracerName = "groupmemail/relay"

type Config struct {
	ReplyPrefix string
	ReplyDomain string
}

// Service decides, per inbound event, whether to forward, suppress or
// notify, and keeps the subscription flags in step.
type Service struct {
	storage  Storage
	chats    chat.Factory
	notifier Notifier
	mailer   mail.Sender
	links    Links
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(
	storage Storage,
	chats chat.Factory,
	notifier Notifier,
	mailer mail.Sender,
	links Links,
	cfg Config,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:  storage,
		chats:    chats,
		notifier: notifier,
		mailer:   mailer,
		links:    links,
		cfg:      cfg,
		now:      now,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// HandleChatEvent relays one message posted in a group to userID's email.
func (s *Service) HandleChatEvent(ctx context.Context, userID string, event ChatEvent) (outcome Outcome, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.HandleChatEvent", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("group_id", event.GroupID),
	))
	defer func() {
		label := string(outcome)
		if err != nil {
			label = chatEventErrorLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, label)
		}
		span.SetAttributes(attribute.String("outcome", label))
		span.End()
		metrics.ChatEvents.WithLabelValues(label).Inc()
	}()

	logger := s.logger.With("user_id", userID, "group_id", event.GroupID)

	sub, err := s.storage.GetSubscription(ctx, subs.GetCriteria{UserID: &userID})
	if err != nil {
		return "", fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		logger.Warn("Chat event for unknown user")
		return "", ErrUnknownUser
	}

	if sub.Ignored {
		logger.Info("Chat event for ignored user")
		return "", ErrIgnored
	}

	if err := event.Validate(); err != nil {
		logger.Warn("Malformed chat event", "error", err)
		return "", err
	}

	client := s.chats.WithCredential(sub.Credential)

	if sub.Expired(s.now()) {
		logger.Info("Subscription expired, suppressing relay", "expiration", sub.Expiration)
		s.teardownBots(ctx, client, sub.UserID, event.GroupID, logger)

		if _, err := s.notifier.NotifyExpiration(ctx, sub); err != nil {
			logger.Error("Failed to notify expiration", "error", err)
		}
		return OutcomeSuppressed, nil
	}

	group, err := client.Group(ctx, event.GroupID)
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		if sub.BadCredentialNotified {
			logger.Warn("Credential rejected, user already notified")
			return OutcomeCredentialInvalid, nil
		}
		logger.Warn("Credential rejected, notifying user")
		if _, err := s.notifier.NotifyBadCredential(ctx, sub); err != nil {
			logger.Error("Failed to notify bad credential", "error", err)
		}
		return OutcomeCredentialInvalid, nil
	case errors.Is(err, chat.ErrNotFound):
		logger.Warn("Chat event for unknown group", "error", err)
		return "", fmt.Errorf("group %s: %w", event.GroupID, ErrUnknownGroup)
	case err != nil:
		logger.Warn("Group lookup failed", "error", err)
		return "", fmt.Errorf("group lookup: %w", err)
	}

	if sub.BadCredentialNotified {
		cleared := false
		if _, err := s.storage.UpdateSubscription(ctx, sub.UserID, subs.UpdateParams{
			BadCredentialNotified: &cleared,
		}); err != nil {
			logger.Error("Failed to clear bad credential flag", "error", err)
		} else {
			sub.BadCredentialNotified = false
		}
	}

	if err := s.forward(ctx, sub, group, event); err != nil {
		logger.Error("Failed to forward chat event", "error", err)
		return "", err
	}

	logger.Debug("Chat event forwarded", "email", sub.Email)
	return OutcomeForwarded, nil
}

// teardownBots removes the relay's own bots for groupID. Failures are logged;
// the event is suppressed either way.
func (s *Service) teardownBots(ctx context.Context, client chat.Client, userID, groupID string, logger *slog.Logger) {
	bots, err := client.Bots(ctx)
	if err != nil {
		logger.Warn("Failed to list bots for teardown", "error", err)
		return
	}

	for _, bot := range bots {
		if bot.GroupID != groupID || !s.links.OwnsCallback(bot.CallbackURL, userID) {
			continue
		}
		if err := client.DestroyBot(ctx, bot.ID); err != nil {
			logger.Warn("Failed to destroy bot", "bot_id", bot.ID, "error", err)
			continue
		}
		logger.Info("Destroyed bot of expired subscription", "bot_id", bot.ID)
	}
}

func (s *Service) forward(ctx context.Context, sub *subs.Subscription, group *chat.Group, event ChatEvent) error {
	groupName := group.Name
	if groupName == "" {
		groupName = "GroupMe"
	}

	html, text, err := Compose(event, groupName, s.links.GroupURL(event.GroupID))
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, mail.Message{
		To:      sub.Email,
		Subject: "New message in " + groupName,
		HTML:    html,
		Text:    text,
		ReplyTo: address.ReplyTo(event.GroupID, s.cfg.ReplyPrefix, s.cfg.ReplyDomain),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	return nil
}

// HandleEmailReply posts the new text of an emailed reply to the group its
// recipient address routes to. Chat failures are surfaced without touching
// the notification flags.
func (s *Service) HandleEmailReply(ctx context.Context, reply EmailReply) (err error) {
	ctx, span := s.tracer.Start(ctx, "relay.HandleEmailReply")
	outcome := "posted"
	defer func() {
		if err != nil {
			outcome = emailReplyErrorLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		metrics.EmailReplies.WithLabelValues(outcome).Inc()
	}()

	if strings.TrimSpace(reply.Sender) == "" || strings.TrimSpace(reply.Recipient) == "" {
		return errors.Join(ErrMalformed, errors.New("sender and recipient are required"))
	}

	sender := address.Canonicalize(reply.Sender)
	logger := s.logger.With("sender", sender, "recipient", reply.Recipient)

	sub, err := s.storage.GetSubscriptionByEmail(ctx, sender)
	if err != nil {
		return fmt.Errorf("get subscription by email: %w", err)
	}
	if sub == nil {
		logger.Warn("Email from unknown sender")
		return ErrUnknownSender
	}
	span.SetAttributes(attribute.String("user_id", sub.UserID))

	if sub.Ignored {
		logger.Info("Email from ignored user", "user_id", sub.UserID)
		return ErrIgnored
	}

	groupID := address.GroupID(reply.Recipient)
	if groupID == "" {
		logger.Warn("Email recipient carries no group")
		return errors.Join(ErrMalformed, errors.New("recipient carries no group"))
	}
	span.SetAttributes(attribute.String("group_id", groupID))

	text := address.ReplyText(reply.Body)
	if text == "" {
		logger.Warn("Email reply has no text", "group_id", groupID)
		return errors.Join(ErrMalformed, errors.New("reply has no text"))
	}

	if err := s.chats.WithCredential(sub.Credential).PostMessage(ctx, groupID, text); err != nil {
		logger.Warn("Failed to post email reply",
			"user_id", sub.UserID,
			"group_id", groupID,
			"error", err)
		return fmt.Errorf("post message: %w", err)
	}

	logger.Debug("Email reply posted", "user_id", sub.UserID, "group_id", groupID)
	return nil
}

func chatEventErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, ErrIgnored):
		return "ignored"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnknownGroup):
		return "unknown_group"
	case errors.Is(err, ErrDelivery):
		return "delivery_failed"
	case errors.Is(err, chat.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

func emailReplyErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, ErrIgnored):
		return "ignored"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, chat.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, chat.ErrNotFound):
		return "group_not_found"
	case errors.Is(err, chat.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
