package stats

import (
	"context"
	"time"

	"groupmemail/internal/stories/subs"
)

type Storage interface {
	CountSubscriptions(ctx context.Context, now time.Time) (*subs.Stats, error)
}
