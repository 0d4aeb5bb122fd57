package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ConstraintKind classifies integrity violations reported by the store.
type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota + 1
	ConstraintForeignKey
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign_key"
	default:
		return "unknown"
	}
}

// ConstraintViolation is returned instead of the raw driver error when a write
// breaks a unique or foreign key constraint.
type ConstraintViolation struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s constraint violation on %s", e.Kind, e.Constraint)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err carries a unique ConstraintViolation.
func IsUniqueViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv) && cv.Kind == ConstraintUnique
}

// Unique constraints on the accounts table.
const (
	ConstraintAccountsEmail    = "accounts_email_lower_key"
	ConstraintAccountsUsername = "accounts_username_key"
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return &ConstraintViolation{Kind: ConstraintUnique, Constraint: pqErr.Constraint, Err: err}
	case pgForeignKeyViolation:
		return &ConstraintViolation{Kind: ConstraintForeignKey, Constraint: pqErr.Constraint, Err: err}
	}
	return err
}
