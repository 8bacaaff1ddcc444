package repository

import (
	"context"
	"errors"
	"fmt"

	"fundsledger/database"
	"fundsledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface over one PostgreSQL transaction
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	transactionalPublisher interfaces.TransactionalEventPublisher
	userFundsRepo          interfaces.UserFundsRepository
	transactionRepo        interfaces.FundTransactionRepository
	promoRepo              interfaces.PromoFundRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		db: db,
	}
}

// UnitOfWorkFactory creates PostgreSQL-backed units of work
type UnitOfWorkFactory struct {
	db *database.DB
}

// CreateWithPublisher creates a new UnitOfWork with a specific transactional publisher
func (f *UnitOfWorkFactory) CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		transactionalPublisher: transactionalPublisher,
	}
}

// Ping checks the database connection
func (f *UnitOfWorkFactory) Ping(ctx context.Context) error {
	return f.db.Ping(ctx)
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginLedgerTx(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.ctx = ctx

	u.userFundsRepo = newUserFundsRepository(tx)
	u.transactionRepo = newFundTransactionRepository(tx)
	u.promoRepo = newPromoFundRepository(tx)

	return nil
}

// Commit commits the transaction and then releases buffered events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		if u.transactionalPublisher != nil {
			u.transactionalPublisher.Discard()
		}
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// UserFundsRepository returns the user funds repository for this unit of work
func (u *unitOfWork) UserFundsRepository() interfaces.UserFundsRepository {
	if u.userFundsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userFundsRepo
}

// FundTransactionRepository returns the transaction repository for this unit of work
func (u *unitOfWork) FundTransactionRepository() interfaces.FundTransactionRepository {
	if u.transactionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionRepo
}

// PromoFundRepository returns the promo repository for this unit of work
func (u *unitOfWork) PromoFundRepository() interfaces.PromoFundRepository {
	if u.promoRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.promoRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalPublisher
}
