package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// SQLSTATE codes the adapters react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// MapError converts pgx/pgconn errors to domain errors, prefixing them with
// the entity and the id that was being touched.
// context.DeadlineExceeded and context.Canceled are NOT mapped; they pass through.
//
// A foreign key violation maps to ErrValidation: every foreign key in the
// catalog schema points at a parent or an identity that an import referenced.
func MapError(err error, entity string, id fmt.Stringer) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s %s: %w", entity, id,
				domain.NewValidationError(entity, "references a missing or incompatible unit"))
		case codeCheckViolation:
			return fmt.Errorf("%s %s: %w", entity, id,
				domain.NewValidationError(entity, "violates "+pgErr.ConstraintName))
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}

// IsSerializationFailure reports whether err aborted a transaction because of
// a concurrent write, in which case the whole transaction may be retried.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
