package maintenance

import (
	"context"

	"groupmemail/internal/stories/subs"
)

type (
	Storage interface {
		ListSubscriptions(ctx context.Context, criteria subs.ListCriteria) ([]*subs.Subscription, error)
	}

	CallbackURLs interface {
		IncomingURL(userID string) string
		OwnsCallback(callbackURL, userID string) bool
	}
)
