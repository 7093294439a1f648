package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const altEmailsTable = "alt_emails"

// AddAltEmail maps altEmail to primaryEmail, replacing any previous mapping.
func (s *storageImpl) AddAltEmail(ctx context.Context, altEmail, primaryEmail string) error {
	altEmail = strings.ToLower(strings.TrimSpace(altEmail))

	if err := s.DeleteAltEmail(ctx, altEmail); err != nil {
		return err
	}

	q, args, err := s.stmpBuilder().
		Insert(altEmailsTable).
		SetMap(map[string]interface{}{
			"alt_email":     altEmail,
			"primary_email": primaryEmail,
			"created_at":    s.now(),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

func (s *storageImpl) DeleteAltEmail(ctx context.Context, altEmail string) error {
	q, args, err := s.stmpBuilder().
		Delete(altEmailsTable).
		Where(sq.Expr("LOWER(alt_email) = ?", strings.ToLower(strings.TrimSpace(altEmail)))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

// GetPrimaryEmail returns the primary address altEmail maps to, or "" when unmapped.
func (s *storageImpl) GetPrimaryEmail(ctx context.Context, altEmail string) (string, error) {
	q, args, err := s.stmpBuilder().
		Select("primary_email").
		From(altEmailsTable).
		Where(sq.Expr("LOWER(alt_email) = ?", strings.ToLower(altEmail))).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build sql query: %w", err)
	}

	var primary string
	err = s.db.GetContext(ctx, &primary, q, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db.GetContext: %w", err)
	}

	return primary, nil
}
