package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxCommitRetries     = 3
	defaultRetryInitialInterval = 10 * time.Millisecond
)

// LedgerEngineOptions configures limits, retries and optional collaborators
type LedgerEngineOptions struct {
	MaxCommitRetries     int
	RetryInitialInterval time.Duration

	// Zero means unlimited
	MaxWithdrawalAmount decimal.Decimal
	MaxTransferAmount   decimal.Decimal

	Clock   func() time.Time
	Metrics interfaces.LedgerMetrics
	Cache   interfaces.BalanceCache
}

// LedgerEngine performs every mutation of user funds. Each operation runs as a
// single unit of work and is retried with fresh reads when the store reports a
// concurrency conflict.
type LedgerEngine struct {
	uowFactory interfaces.UnitOfWorkFactory
	opts       LedgerEngineOptions
	allocator  AllocationStrategy
}

// NewLedgerEngine creates a new ledger engine
func NewLedgerEngine(uowFactory interfaces.UnitOfWorkFactory, opts LedgerEngineOptions) *LedgerEngine {
	if opts.MaxCommitRetries < 0 {
		opts.MaxCommitRetries = 0
	} else if opts.MaxCommitRetries == 0 {
		opts.MaxCommitRetries = defaultMaxCommitRetries
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = defaultRetryInitialInterval
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	return &LedgerEngine{
		uowFactory: uowFactory,
		opts:       opts,
	}
}

// ledgerTx carries the state of one attempt at an operation
type ledgerTx struct {
	ctx     context.Context
	uow     interfaces.UnitOfWork
	now     time.Time
	touched []string
}

type txFunc func(tx *ledgerTx) (*entities.OperationResult, error)

// runInTransaction executes fn inside a unit of work. LedgerErrors returned by
// fn become failed results; conflicts are retried until MaxCommitRetries is
// exhausted and then reported as SYSTEM_ERROR.
func (e *LedgerEngine) runInTransaction(ctx context.Context, operation string, fn txFunc) (*entities.OperationResult, error) {
	started := time.Now()

	var (
		result  *entities.OperationResult
		touched []string
		attempt int
	)

	run := func() error {
		attempt++
		tx, res, err := e.attempt(ctx, fn)
		if err == nil {
			result = res
			touched = tx.touched
			return nil
		}
		if ledgerErr, ok := entities.AsLedgerError(err); ok {
			result = entities.FailedResult(ledgerErr)
			return nil
		}
		if errors.Is(err, interfaces.ErrConcurrencyConflict) {
			e.opts.Metrics.RecordCommitRetry(operation)
			log.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
			}).Warn("Ledger unit of work conflicted, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(run, e.newBackOff(ctx)); err != nil {
		if !errors.Is(err, interfaces.ErrConcurrencyConflict) {
			e.opts.Metrics.RecordOperation(operation, entities.ErrCodeSystemError, time.Since(started))
			log.WithFields(log.Fields{
				"operation": operation,
				"error":     err,
			}).Error("Ledger operation failed")
			return nil, fmt.Errorf("%s failed: %w", operation, err)
		}
		result = entities.FailedResult(entities.NewLedgerError(entities.ErrCodeSystemError,
			"%s aborted after %d conflicting attempts", operation, attempt))
	}

	if result.Success {
		e.invalidateCache(ctx, touched...)
	}
	e.opts.Metrics.RecordOperation(operation, result.ErrorCode, time.Since(started))

	log.WithFields(log.Fields{
		"operation":     operation,
		"success":       result.Success,
		"errorCode":     result.ErrorCode,
		"transactionID": result.TransactionID,
		"attempts":      attempt,
	}).Debug("Ledger operation finished")

	return result, nil
}

func (e *LedgerEngine) attempt(ctx context.Context, fn txFunc) (*ledgerTx, *entities.OperationResult, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx := &ledgerTx{
		ctx: ctx,
		uow: uow,
		now: e.opts.Clock(),
	}

	result, err := fn(tx)
	if err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx, result, nil
}

func (e *LedgerEngine) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.opts.RetryInitialInterval
	expo.MaxInterval = 50 * e.opts.RetryInitialInterval
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(e.opts.MaxCommitRetries)), ctx)
}

func (e *LedgerEngine) invalidateCache(ctx context.Context, userIDs ...string) {
	if e.opts.Cache == nil || len(userIDs) == 0 {
		return
	}
	if err := e.opts.Cache.Invalidate(ctx, userIDs...); err != nil {
		log.WithFields(log.Fields{
			"userIDs": userIDs,
			"error":   err,
		}).Warn("Failed to invalidate balance cache")
	}
}

// lockAccount loads a user's funds under the unit of work's row lock, creating
// the record first when create is set.
func (t *ledgerTx) lockAccount(userID string, create bool) (*entities.UserFunds, error) {
	repo := t.uow.UserFundsRepository()

	funds, err := repo.GetForUpdate(t.ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load funds for user %s: %w", userID, err)
	}

	if funds == nil {
		if !create {
			return nil, entities.NewLedgerError(entities.ErrCodeUserNotFound, "user %s not found", userID)
		}
		if err := repo.Create(t.ctx, entities.NewUserFunds(userID, t.now)); err != nil {
			return nil, fmt.Errorf("failed to create funds for user %s: %w", userID, err)
		}
		funds, err = repo.GetForUpdate(t.ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load funds for user %s: %w", userID, err)
		}
		if funds == nil {
			return nil, fmt.Errorf("funds for user %s missing after create", userID)
		}
	}

	t.touched = append(t.touched, userID)
	return funds, nil
}

// lockActiveAccount is lockAccount for operations that closed accounts may not perform
func (t *ledgerTx) lockActiveAccount(userID string, create bool) (*entities.UserFunds, error) {
	funds, err := t.lockAccount(userID, create)
	if err != nil {
		return nil, err
	}
	if funds.IsClosed() {
		return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "account %s is closed", userID)
	}
	return funds, nil
}

func (t *ledgerTx) save(funds *entities.UserFunds) error {
	funds.Recompute()
	if err := funds.Validate(); err != nil {
		return fmt.Errorf("funds for user %s violate invariants: %w", funds.UserID, err)
	}
	if err := t.uow.UserFundsRepository().Update(t.ctx, funds); err != nil {
		return fmt.Errorf("failed to update funds for user %s: %w", funds.UserID, err)
	}
	return nil
}

func (t *ledgerTx) record(txs ...*entities.FundTransaction) error {
	for _, ft := range txs {
		if err := utils.RecordFundTransaction(t.ctx, t.uow.FundTransactionRepository(), t.uow.EventBus(), ft); err != nil {
			return err
		}
	}
	return nil
}

// newTransaction builds a completed row. Direction follows from the balance movement.
func (t *ledgerTx) newTransaction(userID string, txType entities.TransactionType, ft entities.FundType, amount, before, after decimal.Decimal) *entities.FundTransaction {
	direction := entities.DirectionDebit
	if after.GreaterThan(before) {
		direction = entities.DirectionCredit
	}
	completedAt := t.now
	return &entities.FundTransaction{
		ID:            utils.NewID(),
		UserID:        userID,
		Type:          txType,
		FundType:      ft,
		Direction:     direction,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        entities.TransactionStatusCompleted,
		CreatedAt:     t.now,
		UpdatedAt:     t.now,
		CompletedAt:   &completedAt,
	}
}

func validateUserID(userID string) *entities.LedgerError {
	if strings.TrimSpace(userID) == "" {
		return entities.NewLedgerError(entities.ErrCodeUserNotFound, "user id is required")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) *entities.LedgerError {
	if !amount.IsPositive() {
		return entities.NewLedgerError(entities.ErrCodeInvalidAmount, "amount must be greater than zero, got %s", amount)
	}
	return nil
}

// failed returns a failed result for a pre-transaction validation error
func (e *LedgerEngine) failed(operation string, err *entities.LedgerError) (*entities.OperationResult, error) {
	e.opts.Metrics.RecordOperation(operation, err.Code, 0)
	log.WithFields(log.Fields{
		"operation": operation,
		"errorCode": err.Code,
	}).Debug("Ledger operation rejected")
	return entities.FailedResult(err), nil
}

func copyAnnotations(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// OpenAccount creates an empty funds record. Opening an existing account is a no-op.
func (e *LedgerEngine) OpenAccount(ctx context.Context, userID string) (*entities.OperationResult, error) {
	if err := validateUserID(userID); err != nil {
		return e.failed("open_account", err)
	}
	return e.runInTransaction(ctx, "open_account", func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockAccount(userID, true)
		if err != nil {
			return nil, err
		}
		return entities.SucceededResult(funds), nil
	})
}

// CloseAccount soft-closes an account. History and balances are retained.
func (e *LedgerEngine) CloseAccount(ctx context.Context, userID string) (*entities.OperationResult, error) {
	if err := validateUserID(userID); err != nil {
		return e.failed("close_account", err)
	}
	return e.runInTransaction(ctx, "close_account", func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockAccount(userID, false)
		if err != nil {
			return nil, err
		}
		if funds.IsClosed() {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "account %s is already closed", userID)
		}
		funds.Status = entities.AccountStatusClosed
		funds.LastUpdated = tx.now
		if err := tx.save(funds); err != nil {
			return nil, err
		}
		return entities.SucceededResult(funds), nil
	})
}

// GetUserFunds returns the current balances, creating an empty record on first access
func (e *LedgerEngine) GetUserFunds(ctx context.Context, userID string) (*entities.UserFunds, error) {
	if e.opts.Cache != nil {
		cached, err := e.opts.Cache.Get(ctx, userID)
		if err != nil {
			log.WithFields(log.Fields{
				"userID": userID,
				"error":  err,
			}).Warn("Balance cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	funds, err := e.readFunds(ctx, userID)
	if err != nil {
		return nil, err
	}
	if funds == nil {
		result, err := e.OpenAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("failed to open account for user %s: %s", userID, result.Error)
		}
		if funds, err = e.readFunds(ctx, userID); err != nil {
			return nil, err
		}
		if funds == nil {
			return nil, fmt.Errorf("funds for user %s missing after open", userID)
		}
	}

	if e.opts.Cache != nil {
		if err := e.opts.Cache.Set(ctx, funds); err != nil {
			log.WithFields(log.Fields{
				"userID": userID,
				"error":  err,
			}).Warn("Balance cache write failed")
		}
	}
	return funds, nil
}

func (e *LedgerEngine) readFunds(ctx context.Context, userID string) (*entities.UserFunds, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	funds, err := uow.UserFundsRepository().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get funds for user %s: %w", userID, err)
	}
	return funds, nil
}
