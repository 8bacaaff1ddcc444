package memory

import (
	"context"
	"fmt"
	"time"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

type userFundsRepository struct {
	uow *unitOfWork
}

// read returns the staged or committed record with the promo balance derived
// from active grants. Caller must hold store.mu.
func (r *userFundsRepository) read(userID string) *entities.UserFunds {
	funds, ok := r.uow.funds[userID]
	if !ok {
		funds = r.uow.store.funds[userID]
	}
	if funds == nil {
		return nil
	}

	out := cloneFunds(funds)
	promos := r.uow.mergedPromos(func(p *entities.PromoFund) bool { return p.UserID == userID })
	promo := out.Balance(entities.FundTypePromo)
	promo.Amount = activePromoTotal(promos)
	out.Balances[entities.FundTypePromo] = promo
	out.Recompute()
	return out
}

func (r *userFundsRepository) Get(ctx context.Context, userID string) (*entities.UserFunds, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()
	return r.read(userID), nil
}

func (r *userFundsRepository) GetForUpdate(ctx context.Context, userID string) (*entities.UserFunds, error) {
	r.uow.lockUser(userID)

	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()
	return r.read(userID), nil
}

func (r *userFundsRepository) Create(ctx context.Context, funds *entities.UserFunds) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	if _, ok := r.uow.funds[funds.UserID]; ok {
		return nil
	}
	if _, ok := r.uow.store.funds[funds.UserID]; ok {
		return nil
	}
	r.uow.funds[funds.UserID] = cloneFunds(funds)
	return nil
}

func (r *userFundsRepository) Update(ctx context.Context, funds *entities.UserFunds) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	current, ok := r.uow.funds[funds.UserID]
	if !ok {
		current = r.uow.store.funds[funds.UserID]
	}
	if current == nil {
		return fmt.Errorf("funds for user %s do not exist", funds.UserID)
	}

	updated := cloneFunds(funds)
	updated.Version = current.Version + 1
	r.uow.funds[funds.UserID] = updated
	funds.Version = updated.Version
	return nil
}

type fundTransactionRepository struct {
	uow *unitOfWork
}

func (r *fundTransactionRepository) Append(ctx context.Context, tx *entities.FundTransaction) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	if _, ok := r.uow.store.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if _, ok := r.uow.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	r.uow.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (r *fundTransactionRepository) get(id string) *entities.FundTransaction {
	if t, ok := r.uow.transactions[id]; ok {
		return t
	}
	return r.uow.store.transactions[id]
}

func (r *fundTransactionRepository) GetByID(ctx context.Context, id string) (*entities.FundTransaction, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()
	return cloneTransaction(r.get(id)), nil
}

func (r *fundTransactionRepository) UpdateStatus(ctx context.Context, id string, status entities.TransactionStatus, failureReason string, at time.Time) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	current := r.get(id)
	if current == nil {
		return fmt.Errorf("transaction %s not found", id)
	}
	updated := cloneTransaction(current)
	updated.Status = status
	updated.UpdatedAt = at
	if failureReason != "" {
		updated.FailureReason = failureReason
	}
	if status == entities.TransactionStatusCompleted {
		completedAt := at
		updated.CompletedAt = &completedAt
	}
	r.uow.transactions[id] = updated
	return nil
}

func (r *fundTransactionRepository) List(ctx context.Context, filter entities.TransactionFilter) ([]*entities.FundTransaction, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	out := r.uow.mergedTransactions(func(t *entities.FundTransaction) bool {
		if t.UserID != filter.UserID {
			return false
		}
		return filter.FundType == nil || t.FundType == *filter.FundType
	})
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fundTransactionRepository) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) ([]*entities.FundTransaction, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	out := r.uow.mergedTransactions(func(t *entities.FundTransaction) bool {
		return t.UserID == userID && t.Type == txType && t.ReferenceID == referenceID
	})
	sortNewestFirst(out)
	// oldest first for callers walking a bet's rows in the order they were written
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *fundTransactionRepository) SumByFundType(ctx context.Context, userID string) (map[entities.FundType]decimal.Decimal, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	sums := make(map[entities.FundType]decimal.Decimal, len(entities.AllFundTypes))
	for _, ft := range entities.AllFundTypes {
		sums[ft] = decimal.Zero
	}
	for _, t := range r.uow.mergedTransactions(func(t *entities.FundTransaction) bool { return t.UserID == userID }) {
		sums[t.FundType] = sums[t.FundType].Add(t.SignedAmount())
	}
	return sums, nil
}

type promoFundRepository struct {
	uow *unitOfWork
}

func (r *promoFundRepository) Create(ctx context.Context, promo *entities.PromoFund) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	if _, ok := r.uow.store.promos[promo.ID]; ok {
		return fmt.Errorf("promo %s already exists", promo.ID)
	}
	r.uow.promos[promo.ID] = clonePromo(promo)
	return nil
}

func (r *promoFundRepository) GetByID(ctx context.Context, id string) (*entities.PromoFund, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	if p, ok := r.uow.promos[id]; ok {
		return clonePromo(p), nil
	}
	return clonePromo(r.uow.store.promos[id]), nil
}

func (r *promoFundRepository) Update(ctx context.Context, promo *entities.PromoFund) error {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	_, staged := r.uow.promos[promo.ID]
	_, committed := r.uow.store.promos[promo.ID]
	if !staged && !committed {
		return fmt.Errorf("promo %s not found", promo.ID)
	}
	r.uow.promos[promo.ID] = clonePromo(promo)
	return nil
}

func (r *promoFundRepository) ListActiveByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	out := r.uow.mergedPromos(func(p *entities.PromoFund) bool {
		return p.UserID == userID && p.Status == entities.PromoStatusActive
	})
	sortActivePromos(out)
	return out, nil
}

func (r *promoFundRepository) ListByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	out := r.uow.mergedPromos(func(p *entities.PromoFund) bool { return p.UserID == userID })
	sortActivePromos(out)
	// newest grant first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *promoFundRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.PromoFund, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	out := r.uow.mergedPromos(func(p *entities.PromoFund) bool { return expiredBy(p, now) })
	sortActivePromos(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
