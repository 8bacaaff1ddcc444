package repository

import (
	"context"
	"errors"
	"fmt"

	"fundsledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// queryable is satisfied by both the pool and a transaction
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// mapError turns lost races reported by PostgreSQL into ErrConcurrencyConflict
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w", pgErr.Message, interfaces.ErrConcurrencyConflict)
		}
	}
	return err
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func parseOptionalDecimal(field string, value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := parseDecimal(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalDecimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
