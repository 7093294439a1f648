package api

import (
	"context"

	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/maintenance"
	"groupmemail/internal/stories/relay"
	"groupmemail/internal/stories/subs"
)

type (
	Relay interface {
		HandleChatEvent(ctx context.Context, userID string, event relay.ChatEvent) (relay.Outcome, error)
		HandleEmailReply(ctx context.Context, reply relay.EmailReply) error
	}

	Subscriptions interface {
		Subscribe(ctx context.Context, credential, groupID string) (*subs.Subscription, error)
		Unsubscribe(ctx context.Context, credential, groupID string) (int, error)
		Status(ctx context.Context, credential string) (*subs.Status, error)
		Extend(ctx context.Context, userID string, days int) (*subs.Subscription, error)
		SetIgnored(ctx context.Context, userID string, ignored bool) (*subs.Subscription, error)
		AddAltEmail(ctx context.Context, userID, altEmail string) error
	}

	Maintenance interface {
		Authorize(ctx context.Context, credential string) (*chat.User, error)
		ResetCallbackURLs(ctx context.Context, adminCredential string) (maintenance.Report, error)
	}
)
