package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"groupmemail/internal/infra/sqldb"
	"groupmemail/internal/stories/subs"
)

const subscriptionsTable = "subscriptions"

var subscriptionRowFields = fields(subscriptionRow{})

type subscriptionRow struct {
	UserID                string    `db:"user_id"`
	Email                 string    `db:"email"`
	Credential            string    `db:"credential"`
	Expiration            time.Time `db:"expiration"`
	ExpirationNotified    bool      `db:"expiration_notified"`
	BadCredentialNotified bool      `db:"bad_credential_notified"`
	Ignored               bool      `db:"ignored"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (s subscriptionRow) ToModel() *subs.Subscription {
	return &subs.Subscription{
		UserID:                s.UserID,
		Email:                 s.Email,
		Credential:            s.Credential,
		Expiration:            s.Expiration.UTC(),
		ExpirationNotified:    s.ExpirationNotified,
		BadCredentialNotified: s.BadCredentialNotified,
		Ignored:               s.Ignored,
		CreatedAt:             s.CreatedAt.UTC(),
		UpdatedAt:             s.UpdatedAt.UTC(),
	}
}

func (s *storageImpl) CreateSubscription(ctx context.Context, subscription subs.Subscription) (*subs.Subscription, error) {
	now := s.now()

	params := map[string]interface{}{
		"user_id":                 subscription.UserID,
		"email":                   subscription.Email,
		"credential":              subscription.Credential,
		"expiration":              subscription.Expiration.UTC(),
		"expiration_notified":     subscription.ExpirationNotified,
		"bad_credential_notified": subscription.BadCredentialNotified,
		"ignored":                 subscription.Ignored,
		"created_at":              now,
		"updated_at":              now,
	}

	q, args, err := s.stmpBuilder().
		Insert(subscriptionsTable).
		SetMap(params).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s / %s: %w", subscription.UserID, subscription.Email, subs.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	return s.GetSubscription(ctx, subs.GetCriteria{UserID: &subscription.UserID})
}

func (s *storageImpl) GetSubscription(ctx context.Context, criteria subs.GetCriteria) (*subs.Subscription, error) {
	query := s.stmpBuilder().
		Select(subscriptionRowFields).
		From(subscriptionsTable).
		Limit(1)

	if criteria.UserID != nil {
		query = query.Where(sq.Eq{"user_id": *criteria.UserID})
	}

	return s.getSubscription(ctx, s.db, query)
}

// GetSubscriptionByEmail matches the primary address case-insensitively and
// falls back to the alternate address mapping.
func (s *storageImpl) GetSubscriptionByEmail(ctx context.Context, email string) (*subs.Subscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	sub, err := s.getSubscriptionByPrimaryEmail(ctx, email)
	if err != nil || sub != nil {
		return sub, err
	}

	primary, err := s.GetPrimaryEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if primary == "" {
		return nil, nil
	}

	return s.getSubscriptionByPrimaryEmail(ctx, strings.ToLower(primary))
}

func (s *storageImpl) getSubscriptionByPrimaryEmail(ctx context.Context, email string) (*subs.Subscription, error) {
	query := s.stmpBuilder().
		Select(subscriptionRowFields).
		From(subscriptionsTable).
		Where(sq.Expr("LOWER(email) = ?", email)).
		Limit(1)

	return s.getSubscription(ctx, s.db, query)
}

func (s *storageImpl) getSubscription(ctx context.Context, db sqlx.QueryerContext, query sq.SelectBuilder) (*subs.Subscription, error) {
	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row subscriptionRow
	err = sqlx.GetContext(ctx, db, &row, q, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

// UpdateSubscription applies params to userID's row and returns the result,
// or nil when there is no such subscription.
func (s *storageImpl) UpdateSubscription(ctx context.Context, userID string, params subs.UpdateParams) (*subs.Subscription, error) {
	query := s.stmpBuilder().
		Update(subscriptionsTable).
		Set("updated_at", s.now()).
		Where(sq.Eq{"user_id": userID})

	if params.Credential != nil {
		query = query.Set("credential", *params.Credential)
	}
	if params.Expiration != nil {
		query = query.Set("expiration", params.Expiration.UTC())
	}
	if params.ExpirationNotified != nil {
		query = query.Set("expiration_notified", *params.ExpirationNotified)
	}
	if params.BadCredentialNotified != nil {
		query = query.Set("bad_credential_notified", *params.BadCredentialNotified)
	}
	if params.Ignored != nil {
		query = query.Set("ignored", *params.Ignored)
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("result.RowsAffected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return s.GetSubscription(ctx, subs.GetCriteria{UserID: &userID})
}

// ExtendSubscription adds days to the expiration (floored at now) and clears
// expiration_notified in one transaction. The row stays locked from the read
// to the write so concurrent extensions accumulate.
func (s *storageImpl) ExtendSubscription(ctx context.Context, userID string, days int) (*subs.Subscription, error) {
	withTx := sqldb.WithTx(s.db, nil)

	err := withTx(ctx, func(tx *sqlx.Tx) error {
		query := s.stmpBuilder().
			Select(subscriptionRowFields).
			From(subscriptionsTable).
			Where(sq.Eq{"user_id": userID}).
			Limit(1)
		// sqlite takes the write lock at BEGIN, see sqldb
		if s.db.DriverName() == sqldb.DriverPostgres {
			query = query.Suffix("FOR UPDATE")
		}

		current, err := s.getSubscription(ctx, tx, query)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("user %s: %w", userID, subs.ErrNotFound)
		}

		now := s.now()
		q, args, err := s.stmpBuilder().
			Update(subscriptionsTable).
			Set("expiration", subs.Extended(current.Expiration, now, days)).
			Set("expiration_notified", false).
			Set("updated_at", now).
			Where(sq.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscription(ctx, subs.GetCriteria{UserID: &userID})
}

func (s *storageImpl) ListSubscriptions(ctx context.Context, criteria subs.ListCriteria) ([]*subs.Subscription, error) {
	query := s.stmpBuilder().
		Select(subscriptionRowFields).
		From(subscriptionsTable)

	if criteria.Ignored != nil {
		query = query.Where(sq.Eq{"ignored": *criteria.Ignored})
	}
	if criteria.ExpirationNotified != nil {
		query = query.Where(sq.Eq{"expiration_notified": *criteria.ExpirationNotified})
	}
	if criteria.ExpiredAt != nil {
		query = query.Where(sq.LtOrEq{"expiration": criteria.ExpiredAt.UTC()})
	}

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	query = query.OrderBy("created_at ASC", "user_id ASC")

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []subscriptionRow
	err = s.db.SelectContext(ctx, &rows, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	var subscriptions []*subs.Subscription
	for _, row := range rows {
		subscriptions = append(subscriptions, row.ToModel())
	}

	return subscriptions, nil
}
