package pgxstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kintsdev/normup"
)

// wrapPgError maps pgx errors onto normup.ORMError, keeping the original as Internal
func wrapPgError(err error, query string, args []any) error {
	if err == nil {
		return nil
	}
	var oe *normup.ORMError
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &normup.ORMError{Code: normup.ErrCodeTransaction, Message: err.Error(), Internal: err, Query: query, Args: args}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &normup.ORMError{Code: normup.CodeFromSQLState(pgErr.Code), Message: pgErr.Message, Internal: err, Query: query, Args: args}
	}
	return err
}
