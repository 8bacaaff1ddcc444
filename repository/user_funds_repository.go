package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundsledger/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserFundsRepository implements the UserFundsRepository interface. The promo
// amount is not stored on the row; it is the sum of the user's active grants.
type UserFundsRepository struct {
	q queryable
}

func newUserFundsRepository(q queryable) *UserFundsRepository {
	return &UserFundsRepository{q: q}
}

const selectUserFunds = `
	SELECT
		user_id,
		cash_amount::text,
		cash_locked::text,
		sendable_amount::text,
		sendable_locked::text,
		promo_locked::text,
		status,
		version,
		cash_updated_at,
		sendable_updated_at,
		promo_updated_at,
		created_at,
		updated_at
	FROM user_funds
	WHERE user_id = $1
`

// Get retrieves a user's funds without locking the row
func (r *UserFundsRepository) Get(ctx context.Context, userID string) (*entities.UserFunds, error) {
	return r.get(ctx, userID, selectUserFunds)
}

// GetForUpdate retrieves a user's funds and holds the row lock until the transaction ends
func (r *UserFundsRepository) GetForUpdate(ctx context.Context, userID string) (*entities.UserFunds, error) {
	return r.get(ctx, userID, selectUserFunds+" FOR UPDATE")
}

func (r *UserFundsRepository) get(ctx context.Context, userID, query string) (*entities.UserFunds, error) {
	var (
		funds                                                       entities.UserFunds
		cashAmount, cashLocked, sendAmount, sendLocked, promoLocked string
		cashUpdated, sendUpdated, promoUpdated                      time.Time
	)

	err := r.q.QueryRow(ctx, query, userID).Scan(
		&funds.UserID,
		&cashAmount,
		&cashLocked,
		&sendAmount,
		&sendLocked,
		&promoLocked,
		&funds.Status,
		&funds.Version,
		&cashUpdated,
		&sendUpdated,
		&promoUpdated,
		&funds.CreatedAt,
		&funds.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get funds for user %s: %w", userID, mapError(err))
	}

	// Read after the row lock so a waiting writer sees grants committed by the previous holder
	promoAmount, err := r.activePromoTotal(ctx, userID)
	if err != nil {
		return nil, err
	}

	funds.Balances = make(map[entities.FundType]entities.FundBalance, len(entities.AllFundTypes))
	columns := []struct {
		ft      entities.FundType
		amount  string
		locked  string
		updated time.Time
	}{
		{entities.FundTypeCash, cashAmount, cashLocked, cashUpdated},
		{entities.FundTypeSendable, sendAmount, sendLocked, sendUpdated},
		{entities.FundTypePromo, promoAmount.String(), promoLocked, promoUpdated},
	}
	for _, c := range columns {
		amount, err := parseDecimal(string(c.ft)+"_amount", c.amount)
		if err != nil {
			return nil, err
		}
		locked, err := parseDecimal(string(c.ft)+"_locked", c.locked)
		if err != nil {
			return nil, err
		}
		funds.Balances[c.ft] = entities.FundBalance{
			FundType:    c.ft,
			Amount:      amount,
			Locked:      locked,
			LastUpdated: c.updated,
		}
	}
	funds.Recompute()

	return &funds, nil
}

func (r *UserFundsRepository) activePromoTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(remaining_amount), 0)::text
		FROM promo_funds
		WHERE user_id = $1 AND status = 'active'
	`
	var total string
	if err := r.q.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum promo funds for user %s: %w", userID, mapError(err))
	}
	return parseDecimal("promo_amount", total)
}

// Create inserts a new funds row. An existing row is left untouched.
func (r *UserFundsRepository) Create(ctx context.Context, funds *entities.UserFunds) error {
	query := `
		INSERT INTO user_funds (user_id, status, version, created_at, updated_at,
			cash_updated_at, sendable_updated_at, promo_updated_at)
		VALUES ($1, $2, 1, $3, $3, $3, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, funds.UserID, funds.Status, funds.CreatedAt); err != nil {
		return fmt.Errorf("failed to create funds for user %s: %w", funds.UserID, mapError(err))
	}
	return nil
}

// Update writes the stored columns and bumps the version
func (r *UserFundsRepository) Update(ctx context.Context, funds *entities.UserFunds) error {
	cash := funds.Balance(entities.FundTypeCash)
	sendable := funds.Balance(entities.FundTypeSendable)
	promo := funds.Balance(entities.FundTypePromo)

	query := `
		UPDATE user_funds SET
			cash_amount = $2,
			cash_locked = $3,
			sendable_amount = $4,
			sendable_locked = $5,
			promo_locked = $6,
			status = $7,
			cash_updated_at = $8,
			sendable_updated_at = $9,
			promo_updated_at = $10,
			updated_at = $11,
			version = version + 1
		WHERE user_id = $1
		RETURNING version
	`
	err := r.q.QueryRow(ctx, query,
		funds.UserID,
		cash.Amount.String(),
		cash.Locked.String(),
		sendable.Amount.String(),
		sendable.Locked.String(),
		promo.Locked.String(),
		funds.Status,
		cash.LastUpdated,
		sendable.LastUpdated,
		promo.LastUpdated,
		funds.LastUpdated,
	).Scan(&funds.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("funds for user %s do not exist", funds.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to update funds for user %s: %w", funds.UserID, mapError(err))
	}
	return nil
}
