package subs

import "context"

type (
	Storage interface {
		CreateSubscription(ctx context.Context, subscription Subscription) (*Subscription, error)
		GetSubscription(ctx context.Context, criteria GetCriteria) (*Subscription, error)
		UpdateSubscription(ctx context.Context, userID string, params UpdateParams) (*Subscription, error)
		ExtendSubscription(ctx context.Context, userID string, days int) (*Subscription, error)
		AddAltEmail(ctx context.Context, altEmail, primaryEmail string) error
	}

	CallbackURLs interface {
		IncomingURL(userID string) string
		OwnsCallback(callbackURL, userID string) bool
	}
)
