package storage

import (
	"context"
	"fmt"
	"time"

	"groupmemail/internal/stories/subs"
)

type subscriptionStatsRow struct {
	Total         int `db:"total"`
	Expired       int `db:"expired"`
	Ignored       int `db:"ignored"`
	BadCredential int `db:"bad_credential"`
}

// CountSubscriptions buckets every subscription relative to now.
func (s *storageImpl) CountSubscriptions(ctx context.Context, now time.Time) (*subs.Stats, error) {
	q, args, err := s.stmpBuilder().
		Select(
			"COUNT(*) AS total",
			"COALESCE(SUM(CASE WHEN ignored THEN 1 ELSE 0 END), 0) AS ignored",
			"COALESCE(SUM(CASE WHEN bad_credential_notified THEN 1 ELSE 0 END), 0) AS bad_credential",
		).
		Column("COALESCE(SUM(CASE WHEN expiration <= ? THEN 1 ELSE 0 END), 0) AS expired", now.UTC()).
		From(subscriptionsTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row subscriptionStatsRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return &subs.Stats{
		Total:         row.Total,
		Active:        row.Total - row.Expired,
		Expired:       row.Expired,
		Ignored:       row.Ignored,
		BadCredential: row.BadCredential,
	}, nil
}
