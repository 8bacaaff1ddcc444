package interfaces

import (
	"context"
	"errors"
	"time"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

// ErrConcurrencyConflict is returned by stores when a commit lost a race and the
// whole unit of work may be retried with fresh reads.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// UserFundsRepository defines the interface for per-user balance records.
// The promo balance is derived from active promo grants on every read.
type UserFundsRepository interface {
	// Get reads a record without locking it. Returns nil, nil when missing.
	Get(ctx context.Context, userID string) (*entities.UserFunds, error)

	// GetForUpdate reads a record and holds its lock until the unit of work ends.
	// Returns nil, nil when missing.
	GetForUpdate(ctx context.Context, userID string) (*entities.UserFunds, error)

	// Create inserts a new record. Inserting an existing user is a no-op.
	Create(ctx context.Context, funds *entities.UserFunds) error

	// Update persists cash and sendable balances, all locked amounts and the status
	Update(ctx context.Context, funds *entities.UserFunds) error
}

// FundTransactionRepository defines the interface for the append-only transaction log
type FundTransactionRepository interface {
	// Append records a new transaction
	Append(ctx context.Context, tx *entities.FundTransaction) error

	// GetByID retrieves a transaction. Returns nil, nil when missing.
	GetByID(ctx context.Context, id string) (*entities.FundTransaction, error)

	// UpdateStatus moves a transaction to a new status
	UpdateStatus(ctx context.Context, id string, status entities.TransactionStatus, failureReason string, at time.Time) error

	// List returns a user's transactions newest first
	List(ctx context.Context, filter entities.TransactionFilter) ([]*entities.FundTransaction, error)

	// FindByReference returns a user's transactions of one type that reference an external id
	FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) ([]*entities.FundTransaction, error)

	// SumByFundType returns the signed sum of every transaction per fund type
	SumByFundType(ctx context.Context, userID string) (map[entities.FundType]decimal.Decimal, error)
}

// PromoFundRepository defines the interface for promotional grant records
type PromoFundRepository interface {
	// Create records a new grant
	Create(ctx context.Context, promo *entities.PromoFund) error

	// GetByID retrieves a grant. Returns nil, nil when missing.
	GetByID(ctx context.Context, id string) (*entities.PromoFund, error)

	// Update persists remaining amount, wagering progress and status
	Update(ctx context.Context, promo *entities.PromoFund) error

	// ListActiveByUser returns active grants, soonest expiry first and grants without expiry last
	ListActiveByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error)

	// ListByUser returns every grant for a user, newest first
	ListByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error)

	// ListExpired returns active grants whose expiry is at or before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.PromoFund, error)
}
