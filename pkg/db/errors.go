package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraintName is set, only that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesViolation(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint violation,
// for postgres (pgx or pq) and sqlite alike.
func IsCheckViolation(err error, constraintName string) bool {
	return matchesViolation(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

func matchesViolation(err error, pgCode, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgCode && (constraintName == "" || pgxErr.ConstraintName == constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgCode && (constraintName == "" || pqErr.Constraint == constraintName)
	}

	msg := err.Error()
	matched := false
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
