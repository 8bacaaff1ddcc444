package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fundsledger/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// FundTransactionRepository implements the append-only transaction log on PostgreSQL
type FundTransactionRepository struct {
	q queryable
}

func newFundTransactionRepository(q queryable) *FundTransactionRepository {
	return &FundTransactionRepository{q: q}
}

const selectFundTransaction = `
	SELECT
		id,
		user_id,
		type,
		fund_type,
		direction,
		amount::text,
		balance_before::text,
		balance_after::text,
		status,
		description,
		correlation_id,
		reference_id,
		metadata,
		annotations,
		failure_reason,
		created_at,
		updated_at,
		completed_at
	FROM fund_transactions
`

// Append inserts a new transaction row
func (r *FundTransactionRepository) Append(ctx context.Context, tx *entities.FundTransaction) error {
	metadata, err := entities.MarshalMetadata(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for transaction %s: %w", tx.ID, err)
	}

	var annotations []byte
	if len(tx.Annotations) > 0 {
		if annotations, err = json.Marshal(tx.Annotations); err != nil {
			return fmt.Errorf("failed to encode annotations for transaction %s: %w", tx.ID, err)
		}
	}

	query := `
		INSERT INTO fund_transactions (
			id, user_id, type, fund_type, direction, amount, balance_before, balance_after,
			status, description, correlation_id, reference_id, metadata, annotations,
			failure_reason, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.q.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.FundType,
		tx.Direction,
		tx.Amount.String(),
		tx.BalanceBefore.String(),
		tx.BalanceAfter.String(),
		tx.Status,
		tx.Description,
		tx.CorrelationID,
		tx.ReferenceID,
		metadata,
		annotations,
		tx.FailureReason,
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction %s: %w", tx.ID, mapError(err))
	}
	return nil
}

// GetByID retrieves a transaction by id
func (r *FundTransactionRepository) GetByID(ctx context.Context, id string) (*entities.FundTransaction, error) {
	rows, err := r.q.Query(ctx, selectFundTransaction+" WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, mapError(err))
	}
	transactions, err := scanFundTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}
	return transactions[0], nil
}

// UpdateStatus moves a transaction to a new status. Completion stamps completed_at.
func (r *FundTransactionRepository) UpdateStatus(ctx context.Context, id string, status entities.TransactionStatus, failureReason string, at time.Time) error {
	query := `
		UPDATE fund_transactions SET
			status = $2,
			failure_reason = CASE WHEN $3 = '' THEN failure_reason ELSE $3 END,
			completed_at = CASE WHEN $2 = 'completed' THEN $4 ELSE completed_at END,
			updated_at = $4
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, id, status, failureReason, at)
	if err != nil {
		return fmt.Errorf("failed to update status of transaction %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

// List returns a user's transactions newest first
func (r *FundTransactionRepository) List(ctx context.Context, filter entities.TransactionFilter) ([]*entities.FundTransaction, error) {
	query := selectFundTransaction + " WHERE user_id = $1"
	args := []any{filter.UserID}
	if filter.FundType != nil {
		args = append(args, *filter.FundType)
		query += fmt.Sprintf(" AND fund_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %s: %w", filter.UserID, mapError(err))
	}
	return scanFundTransactions(rows)
}

// FindByReference returns a user's rows of one type for an external reference, oldest first
func (r *FundTransactionRepository) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) ([]*entities.FundTransaction, error) {
	query := selectFundTransaction + `
		WHERE user_id = $1 AND type = $2 AND reference_id = $3
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.q.Query(ctx, query, userID, txType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s transactions for reference %s: %w", txType, referenceID, mapError(err))
	}
	return scanFundTransactions(rows)
}

// SumByFundType returns the signed sum of all of a user's rows per fund type
func (r *FundTransactionRepository) SumByFundType(ctx context.Context, userID string) (map[entities.FundType]decimal.Decimal, error) {
	query := `
		SELECT fund_type,
			COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)::text
		FROM fund_transactions
		WHERE user_id = $1
		GROUP BY fund_type
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions for user %s: %w", userID, mapError(err))
	}
	defer rows.Close()

	sums := make(map[entities.FundType]decimal.Decimal, len(entities.AllFundTypes))
	for _, ft := range entities.AllFundTypes {
		sums[ft] = decimal.Zero
	}
	for rows.Next() {
		var (
			ft  entities.FundType
			sum string
		)
		if err := rows.Scan(&ft, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan transaction sum: %w", err)
		}
		if sums[ft], err = parseDecimal("sum", sum); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction sums: %w", mapError(err))
	}
	return sums, nil
}

func scanFundTransactions(rows pgx.Rows) ([]*entities.FundTransaction, error) {
	defer rows.Close()

	var transactions []*entities.FundTransaction
	for rows.Next() {
		var (
			tx                          entities.FundTransaction
			amount, before, after       string
			metadataRaw, annotationsRaw []byte
		)
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Type,
			&tx.FundType,
			&tx.Direction,
			&amount,
			&before,
			&after,
			&tx.Status,
			&tx.Description,
			&tx.CorrelationID,
			&tx.ReferenceID,
			&metadataRaw,
			&annotationsRaw,
			&tx.FailureReason,
			&tx.CreatedAt,
			&tx.UpdatedAt,
			&tx.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if tx.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		if tx.BalanceBefore, err = parseDecimal("balance_before", before); err != nil {
			return nil, err
		}
		if tx.BalanceAfter, err = parseDecimal("balance_after", after); err != nil {
			return nil, err
		}
		if tx.Metadata, err = entities.UnmarshalMetadata(metadataRaw); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for transaction %s: %w", tx.ID, err)
		}
		if len(annotationsRaw) > 0 {
			if err := json.Unmarshal(annotationsRaw, &tx.Annotations); err != nil {
				return nil, fmt.Errorf("failed to decode annotations for transaction %s: %w", tx.ID, err)
			}
		}

		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", mapError(err))
	}
	return transactions, nil
}
