package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolationCode     = "23505"
	ForeignKeyViolationCode = "23503"
	SerializationFailure    = "40001"
	DeadlockDetected        = "40P01"
)

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// UniqueConstraint returns the violated constraint name for unique violations.
func UniqueConstraint(err error) (string, bool) {
	pe, ok := AsPgError(err)
	if !ok || pe.Code != UniqueViolationCode {
		return "", false
	}
	return pe.ConstraintName, true
}

// Retryable reports whether a transaction failed only because of concurrent
// transactions and may succeed when run again.
func Retryable(err error) bool {
	pe, ok := AsPgError(err)
	return ok && (pe.Code == SerializationFailure || pe.Code == DeadlockDetected)
}
