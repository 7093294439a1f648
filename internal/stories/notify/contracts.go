package notify

import (
	"context"

	"groupmemail/internal/stories/subs"
)

type Storage interface {
	UpdateSubscription(ctx context.Context, userID string, params subs.UpdateParams) (*subs.Subscription, error)
}
