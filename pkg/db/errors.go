package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgCodeUniqueViolation = "23505"
	pgCodeLockNotAvail    = "55P03"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When a constraint name is provided, the helper only
// matches violations of that constraint.
func IsUniqueViolation(err error, constraint ...string) bool {
	if err == nil {
		return false
	}
	name := ""
	if len(constraint) > 0 {
		name = constraint[0]
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation {
		if name == "" {
			return true
		}
		return pgErr.ConstraintName == name
	}
	msg := err.Error()
	if name != "" {
		return strings.Contains(msg, name)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockTimeout reports whether the error came from a lock_timeout expiry.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeLockNotAvail
	}
	return strings.Contains(err.Error(), "lock timeout")
}
