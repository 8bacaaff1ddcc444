package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ledgerTxOptions is the isolation every ledger unit of work runs under. Row
// locks taken with SELECT ... FOR UPDATE serialize writers per user.
var ledgerTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// BeginLedgerTx starts a transaction for a ledger unit of work
func (db *DB) BeginLedgerTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := db.BeginTx(ctx, ledgerTxOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}
