package expiration

import (
	"context"

	"groupmemail/internal/stories/subs"
)

type (
	Storage interface {
		ListSubscriptions(ctx context.Context, criteria subs.ListCriteria) ([]*subs.Subscription, error)
	}

	Notifier interface {
		NotifyExpiration(ctx context.Context, sub *subs.Subscription) (bool, error)
	}
)
