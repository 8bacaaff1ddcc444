package interfaces

import (
	"context"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"

	"github.com/shopspring/decimal"
)

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the surrounding unit of work finishes
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// UnitOfWork scopes one atomic ledger change. Repositories are only valid between
// Begin and Commit/Rollback.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserFundsRepository() UserFundsRepository
	FundTransactionRepository() FundTransactionRepository
	PromoFundRepository() PromoFundRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates unit of work instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// BalanceCache is an optional read-through cache for GetUserFunds
type BalanceCache interface {
	Get(ctx context.Context, userID string) (*entities.UserFunds, error)
	Set(ctx context.Context, funds *entities.UserFunds) error
	Invalidate(ctx context.Context, userIDs ...string) error
}

// LedgerMetrics receives operation outcomes
type LedgerMetrics interface {
	RecordOperation(operation string, errorCode entities.ErrorCode, duration time.Duration)
	RecordCommitRetry(operation string)
	RecordAllocation(fundType entities.FundType, amount decimal.Decimal)
	RecordPromosExpired(count int)
}

// DepositRequest credits external money into cash or sendable funds
type DepositRequest struct {
	UserID           string
	Amount           decimal.Decimal
	FundType         entities.FundType
	PaymentMethodRef string
	Description      string
	Annotations      map[string]string
}

// WithdrawRequest debits cash pending external settlement
type WithdrawRequest struct {
	UserID              string
	Amount              decimal.Decimal
	WithdrawalMethodRef string
	Description         string
	Annotations         map[string]string
}

// TransferRequest moves funds of one type between two users
type TransferRequest struct {
	FromUserID  string
	ToUserID    string
	Amount      decimal.Decimal
	FundType    entities.FundType
	Description string
	Annotations map[string]string
}

// PlaceBetRequest stakes funds across fund types in priority order.
// Odds are optional and only matter for grants with a minimum odds requirement.
type PlaceBetRequest struct {
	UserID       string
	Amount       decimal.Decimal
	PlatformID   string
	BetID        string
	FundPriority []entities.FundType
	Odds         *decimal.Decimal
	Annotations  map[string]string
}

// BetWinningsRequest credits a payout for a placed bet
type BetWinningsRequest struct {
	UserID     string
	Amount     decimal.Decimal
	PlatformID string
	BetID      string
}

// GrantPromoRequest creates a promotional grant
type GrantPromoRequest struct {
	UserID        string
	Amount        decimal.Decimal
	Source        string
	ExpiresInDays *int
	Requirements  *PromoRequirementsInput
	Annotations   map[string]string
}

// PromoRequirementsInput are the caller-settable conditions of a grant
type PromoRequirementsInput struct {
	WageringMultiplier *decimal.Decimal
	MinOdds            *decimal.Decimal
	EligiblePlatforms  []string
	MaxWinnings        *decimal.Decimal
}

// FundsLockRequest reserves or releases funds
type FundsLockRequest struct {
	UserID   string
	FundType entities.FundType
	Amount   decimal.Decimal
}

// LedgerService is the set of atomic operations on user funds. Business failures
// come back in the result; the error return is reserved for storage faults.
type LedgerService interface {
	OpenAccount(ctx context.Context, userID string) (*entities.OperationResult, error)
	CloseAccount(ctx context.Context, userID string) (*entities.OperationResult, error)
	GetUserFunds(ctx context.Context, userID string) (*entities.UserFunds, error)

	Deposit(ctx context.Context, req DepositRequest) (*entities.OperationResult, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*entities.OperationResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*entities.OperationResult, error)

	PlaceBet(ctx context.Context, req PlaceBetRequest) (*entities.OperationResult, error)
	CreditBetWinnings(ctx context.Context, req BetWinningsRequest) (*entities.OperationResult, error)
	RefundBet(ctx context.Context, userID, betID, reason string) (*entities.OperationResult, error)

	GrantPromo(ctx context.Context, req GrantPromoRequest) (*entities.OperationResult, error)
	ConvertPromoToCash(ctx context.Context, userID, promoID string) (*entities.OperationResult, error)

	LockFunds(ctx context.Context, req FundsLockRequest) (bool, error)
	UnlockFunds(ctx context.Context, req FundsLockRequest) (bool, error)
}

// SettlementService drives withdrawals and reversals through the status state machine
type SettlementService interface {
	MarkWithdrawalProcessing(ctx context.Context, transactionID string) (*entities.OperationResult, error)
	CompleteWithdrawal(ctx context.Context, transactionID string) (*entities.OperationResult, error)
	FailWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error)
	CancelWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error)
	ReverseTransaction(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error)
}

// PromoExpiryService runs the maintenance pass over expired grants
type PromoExpiryService interface {
	ExpirePromos(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// ReconciliationReport compares balances with the transaction log
type ReconciliationReport struct {
	UserID     string                                `json:"user_id"`
	Balanced   bool                                  `json:"balanced"`
	Balances   map[entities.FundType]decimal.Decimal `json:"balances"`
	LedgerSums map[entities.FundType]decimal.Decimal `json:"ledger_sums"`
	Mismatches []entities.FundType                   `json:"mismatches,omitempty"`
}

// TransactionLogService is the read path over the ledger history
type TransactionLogService interface {
	ListTransactions(ctx context.Context, userID string, fundType *entities.FundType, limit int) ([]*entities.FundTransaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*entities.FundTransaction, error)
	ListPromoFunds(ctx context.Context, userID string) ([]*entities.PromoFund, error)
	Reconcile(ctx context.Context, userID string) (*ReconciliationReport, error)
}
