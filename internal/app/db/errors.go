/*
Package db provides the Postgres-backed entity store, selected when
DATABASE_URL is configured.

This file contains Postgres error classification helpers.
*/
package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the Postgres error code for unique constraint
// violations, raised by the partial indexes guarding active rentals.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether the error is a unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
