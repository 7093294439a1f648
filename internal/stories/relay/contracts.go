package relay

import (
	"context"

	"groupmemail/internal/stories/subs"
)

type (
	Storage interface {
		GetSubscription(ctx context.Context, criteria subs.GetCriteria) (*subs.Subscription, error)
		GetSubscriptionByEmail(ctx context.Context, email string) (*subs.Subscription, error)
		UpdateSubscription(ctx context.Context, userID string, params subs.UpdateParams) (*subs.Subscription, error)
	}

	Notifier interface {
		NotifyBadCredential(ctx context.Context, sub *subs.Subscription) (bool, error)
		NotifyExpiration(ctx context.Context, sub *subs.Subscription) (bool, error)
	}

	Links interface {
		OwnsCallback(callbackURL, userID string) bool
		GroupURL(groupID string) string
	}
)
