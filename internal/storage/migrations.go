package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"groupmemail/internal/infra/sqldb"
)

const schemaVersionsTable = "schema_versions"

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{`
			CREATE TABLE IF NOT EXISTS subscriptions (
				user_id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				credential TEXT NOT NULL,
				expiration TIMESTAMP NOT NULL,
				expiration_notified BOOLEAN NOT NULL DEFAULT FALSE,
				bad_credential_notified BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`ALTER TABLE subscriptions ADD COLUMN ignored BOOLEAN NOT NULL DEFAULT FALSE`,
		},
	},
	{
		version: 3,
		statements: []string{`
			CREATE TABLE IF NOT EXISTS alt_emails (
				alt_email TEXT PRIMARY KEY,
				primary_email TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		version: 4,
		statements: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_email_lower_idx ON subscriptions (LOWER(email))`,
		},
	},
}

// Migrate brings the schema up to the latest version, one transaction per step.
func (s *storageImpl) Migrate(ctx context.Context) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			schema_version INTEGER PRIMARY KEY,
			migration_date TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_versions: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	withTx := sqldb.WithTx(s.db, nil)
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := withTx(ctx, func(tx *sqlx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("tx.ExecContext: %w", err)
				}
			}

			q, args, err := s.stmpBuilder().
				Insert(schemaVersionsTable).
				Columns("schema_version", "migration_date").
				Values(m.version, s.now()).
				ToSql()
			if err != nil {
				return fmt.Errorf("build sql query: %w", err)
			}

			_, err = tx.ExecContext(ctx, q, args...)
			return err
		})
		if err != nil {
			return current, fmt.Errorf("migrate to version %d: %w", m.version, err)
		}
		current = m.version
	}

	return current, nil
}

func (s *storageImpl) SchemaVersion(ctx context.Context) (int, error) {
	q, args, err := s.stmpBuilder().
		Select("COALESCE(MAX(schema_version), 0)").
		From(schemaVersionsTable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var version int
	if err := s.db.GetContext(ctx, &version, q, args...); err != nil {
		return 0, fmt.Errorf("db.GetContext: %w", err)
	}

	return version, nil
}
