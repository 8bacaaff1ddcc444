package repository

import (
	"context"
	"fmt"
	"time"

	"fundsledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

// PromoFundRepository implements promotional grant storage on PostgreSQL
type PromoFundRepository struct {
	q queryable
}

func newPromoFundRepository(q queryable) *PromoFundRepository {
	return &PromoFundRepository{q: q}
}

const selectPromoFund = `
	SELECT
		id,
		user_id,
		amount::text,
		original_amount::text,
		remaining_amount::text,
		source,
		status,
		wagering_multiplier::text,
		wagered_amount::text,
		min_odds::text,
		eligible_platforms,
		max_winnings::text,
		granted_at,
		expires_at,
		updated_at
	FROM promo_funds
`

// Create inserts a new grant
func (r *PromoFundRepository) Create(ctx context.Context, promo *entities.PromoFund) error {
	query := `
		INSERT INTO promo_funds (
			id, user_id, amount, original_amount, remaining_amount, source, status,
			wagering_multiplier, wagered_amount, min_odds, eligible_platforms, max_winnings,
			granted_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	req := promo.Requirements
	_, err := r.q.Exec(ctx, query,
		promo.ID,
		promo.UserID,
		promo.Amount.String(),
		promo.OriginalAmount.String(),
		promo.RemainingAmount.String(),
		promo.Source,
		promo.Status,
		optionalDecimalString(req.WageringMultiplier),
		req.WageredAmount.String(),
		optionalDecimalString(req.MinOdds),
		req.EligiblePlatforms,
		optionalDecimalString(req.MaxWinnings),
		promo.GrantedAt,
		promo.ExpiresAt,
		promo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create promo %s: %w", promo.ID, mapError(err))
	}
	return nil
}

// GetByID retrieves a grant by id
func (r *PromoFundRepository) GetByID(ctx context.Context, id string) (*entities.PromoFund, error) {
	rows, err := r.q.Query(ctx, selectPromoFund+" WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo %s: %w", id, mapError(err))
	}
	promos, err := scanPromoFunds(rows)
	if err != nil {
		return nil, err
	}
	if len(promos) == 0 {
		return nil, nil
	}
	return promos[0], nil
}

// Update writes the mutable fields of a grant
func (r *PromoFundRepository) Update(ctx context.Context, promo *entities.PromoFund) error {
	query := `
		UPDATE promo_funds SET
			amount = $2,
			remaining_amount = $3,
			wagered_amount = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		promo.ID,
		promo.Amount.String(),
		promo.RemainingAmount.String(),
		promo.Requirements.WageredAmount.String(),
		promo.Status,
		promo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update promo %s: %w", promo.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("promo %s not found", promo.ID)
	}
	return nil
}

// ListActiveByUser returns active grants, soonest expiry first
func (r *PromoFundRepository) ListActiveByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	query := selectPromoFund + `
		WHERE user_id = $1 AND status = 'active'
		ORDER BY expires_at ASC NULLS LAST, granted_at ASC, id ASC
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active promos for user %s: %w", userID, mapError(err))
	}
	return scanPromoFunds(rows)
}

// ListByUser returns all grants for a user, newest first
func (r *PromoFundRepository) ListByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	query := selectPromoFund + `
		WHERE user_id = $1
		ORDER BY granted_at DESC, id DESC
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promos for user %s: %w", userID, mapError(err))
	}
	return scanPromoFunds(rows)
}

// ListExpired returns active grants whose expiry is at or before now
func (r *PromoFundRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.PromoFund, error) {
	query := selectPromoFund + `
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC, id ASC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired promos: %w", mapError(err))
	}
	return scanPromoFunds(rows)
}

func scanPromoFunds(rows pgx.Rows) ([]*entities.PromoFund, error) {
	defer rows.Close()

	var promos []*entities.PromoFund
	for rows.Next() {
		var (
			promo                                entities.PromoFund
			amount, original, remaining, wagered string
			multiplier, minOdds, maxWinnings     *string
		)
		err := rows.Scan(
			&promo.ID,
			&promo.UserID,
			&amount,
			&original,
			&remaining,
			&promo.Source,
			&promo.Status,
			&multiplier,
			&wagered,
			&minOdds,
			&promo.Requirements.EligiblePlatforms,
			&maxWinnings,
			&promo.GrantedAt,
			&promo.ExpiresAt,
			&promo.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promo: %w", err)
		}

		if promo.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		if promo.OriginalAmount, err = parseDecimal("original_amount", original); err != nil {
			return nil, err
		}
		if promo.RemainingAmount, err = parseDecimal("remaining_amount", remaining); err != nil {
			return nil, err
		}
		if promo.Requirements.WageredAmount, err = parseDecimal("wagered_amount", wagered); err != nil {
			return nil, err
		}
		if promo.Requirements.WageringMultiplier, err = parseOptionalDecimal("wagering_multiplier", multiplier); err != nil {
			return nil, err
		}
		if promo.Requirements.MinOdds, err = parseOptionalDecimal("min_odds", minOdds); err != nil {
			return nil, err
		}
		if promo.Requirements.MaxWinnings, err = parseOptionalDecimal("max_winnings", maxWinnings); err != nil {
			return nil, err
		}

		promos = append(promos, &promo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promos: %w", mapError(err))
	}
	return promos, nil
}
