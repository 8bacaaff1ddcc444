package memory

import (
	"context"
	"fmt"
	"sync"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
)

// UnitOfWorkFactory creates memory-backed units of work
type UnitOfWorkFactory struct {
	store *Store
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory over store
func NewUnitOfWorkFactory(store *Store) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store}
}

// CreateWithPublisher creates a new UnitOfWork that flushes transactionalPublisher on commit
func (f *UnitOfWorkFactory) CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork {
	return &unitOfWork{
		store:                  f.store,
		transactionalPublisher: transactionalPublisher,
	}
}

// unitOfWork stages writes in overlays that are visible to its own reads and
// applied to the store on commit.
type unitOfWork struct {
	store                  *Store
	transactionalPublisher interfaces.TransactionalEventPublisher
	ctx                    context.Context
	started                bool

	held map[string]*sync.Mutex

	funds        map[string]*entities.UserFunds
	promos       map[string]*entities.PromoFund
	transactions map[string]*entities.FundTransaction

	userFundsRepo   *userFundsRepository
	transactionRepo *fundTransactionRepository
	promoRepo       *promoFundRepository
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.started {
		return fmt.Errorf("transaction already started")
	}
	u.started = true
	u.ctx = ctx
	u.held = make(map[string]*sync.Mutex)
	u.funds = make(map[string]*entities.UserFunds)
	u.promos = make(map[string]*entities.PromoFund)
	u.transactions = make(map[string]*entities.FundTransaction)

	u.userFundsRepo = &userFundsRepository{uow: u}
	u.transactionRepo = &fundTransactionRepository{uow: u}
	u.promoRepo = &promoFundRepository{uow: u}
	return nil
}

// Commit applies staged writes. The store may be told to fail commits to
// exercise conflict handling.
func (u *unitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no transaction to commit")
	}

	u.store.mu.Lock()
	if u.store.consumeCommitFailure() {
		u.store.mu.Unlock()
		u.finish()
		if u.transactionalPublisher != nil {
			u.transactionalPublisher.Discard()
		}
		return fmt.Errorf("failed to commit memory transaction: %w", interfaces.ErrConcurrencyConflict)
	}
	for id, f := range u.funds {
		u.store.funds[id] = cloneFunds(f)
	}
	for id, p := range u.promos {
		u.store.promos[id] = clonePromo(p)
	}
	for id, t := range u.transactions {
		u.store.transactions[id] = cloneTransaction(t)
	}
	u.store.mu.Unlock()

	u.finish()

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Flush(u.ctx)
	}
	return nil
}

// Rollback drops staged writes
func (u *unitOfWork) Rollback() error {
	if !u.started {
		return nil
	}
	u.finish()
	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}
	return nil
}

func (u *unitOfWork) finish() {
	for _, l := range u.held {
		l.Unlock()
	}
	u.held = nil
	u.funds = nil
	u.promos = nil
	u.transactions = nil
	u.started = false
}

func (u *unitOfWork) lockUser(userID string) {
	if _, ok := u.held[userID]; ok {
		return
	}
	l := u.store.userLock(userID)
	l.Lock()
	u.held[userID] = l
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

// mergedPromos returns committed promos overlaid with staged ones. Caller must hold store.mu.
func (u *unitOfWork) mergedPromos(match func(*entities.PromoFund) bool) []*entities.PromoFund {
	var out []*entities.PromoFund
	for id, p := range u.store.promos {
		if _, staged := u.promos[id]; staged {
			continue
		}
		if match(p) {
			out = append(out, clonePromo(p))
		}
	}
	for _, p := range u.promos {
		if match(p) {
			out = append(out, clonePromo(p))
		}
	}
	return out
}

// mergedTransactions returns committed transactions overlaid with staged ones. Caller must hold store.mu.
func (u *unitOfWork) mergedTransactions(match func(*entities.FundTransaction) bool) []*entities.FundTransaction {
	var out []*entities.FundTransaction
	for id, t := range u.store.transactions {
		if _, staged := u.transactions[id]; staged {
			continue
		}
		if match(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	for _, t := range u.transactions {
		if match(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	return out
}
