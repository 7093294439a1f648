package storage

import (
	"errors"
	"reflect"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"groupmemail/internal/infra/sqldb"
)

type storageImpl struct {
	db          *sqlx.DB
	placeholder sq.PlaceholderFormat
	now         func() time.Time
}

// New wraps db; the placeholder style follows the driver it was opened with.
func New(db *sqlx.DB) *storageImpl {
	var placeholder sq.PlaceholderFormat = sq.Question
	if db.DriverName() == sqldb.DriverPostgres {
		placeholder = sq.Dollar
	}

	return &storageImpl{
		db:          db,
		placeholder: placeholder,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.placeholder)
}

// fields lists the db-tagged columns of a row struct.
func fields(data any) string {
	var s string
	r := reflect.TypeOf(data)
	for i := 0; i < r.NumField(); i++ {
		tag := r.Field(i).Tag.Get("db")
		if tag != "" {
			s += tag + ","
		}
	}
	return s[:len(s)-1]
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}
