package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a user's funds record
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// FundBalance is the state of a single fund type for a user
type FundBalance struct {
	FundType    FundType        `json:"fund_type"`
	Amount      decimal.Decimal `json:"amount"`
	Available   decimal.Decimal `json:"available"`
	Locked      decimal.Decimal `json:"locked"`
	LastUpdated time.Time       `json:"last_updated"`
}

// UserFunds is the per-user ledger record. Available and the totals are
// always derived by Recompute and never written independently.
type UserFunds struct {
	UserID         string                   `json:"user_id"`
	Balances       map[FundType]FundBalance `json:"balances"`
	TotalBalance   decimal.Decimal          `json:"total_balance"`
	TotalAvailable decimal.Decimal          `json:"total_available"`
	Status         AccountStatus            `json:"status"`
	Version        int64                    `json:"version"`
	CreatedAt      time.Time                `json:"created_at"`
	LastUpdated    time.Time                `json:"last_updated"`
}

// NewUserFunds creates an empty active record with a zero balance for every fund type
func NewUserFunds(userID string, now time.Time) *UserFunds {
	funds := &UserFunds{
		UserID:      userID,
		Balances:    make(map[FundType]FundBalance, len(AllFundTypes)),
		Status:      AccountStatusActive,
		CreatedAt:   now,
		LastUpdated: now,
	}
	for _, ft := range AllFundTypes {
		funds.Balances[ft] = FundBalance{FundType: ft, LastUpdated: now}
	}
	funds.Recompute()
	return funds
}

// Balance returns the balance for a fund type, zero valued when absent
func (u *UserFunds) Balance(ft FundType) FundBalance {
	if b, ok := u.Balances[ft]; ok {
		return b
	}
	return FundBalance{FundType: ft}
}

// IsClosed reports whether the account has been soft-closed
func (u *UserFunds) IsClosed() bool {
	return u.Status == AccountStatusClosed
}

// Credit adds amount to a fund type and returns the amount before and after
func (u *UserFunds) Credit(ft FundType, amount decimal.Decimal, now time.Time) (before, after decimal.Decimal) {
	b := u.Balance(ft)
	before = b.Amount
	b.Amount = b.Amount.Add(amount)
	b.LastUpdated = now
	u.Balances[ft] = b
	u.touch(now)
	return before, b.Amount
}

// Debit removes amount from a fund type. Only unlocked funds may be debited.
func (u *UserFunds) Debit(ft FundType, amount decimal.Decimal, now time.Time) (before, after decimal.Decimal, err error) {
	b := u.Balance(ft)
	if b.Amount.Sub(b.Locked).LessThan(amount) {
		return b.Amount, b.Amount, NewLedgerError(ErrCodeInsufficientFunds,
			"insufficient %s funds: available %s, requested %s", ft, b.Amount.Sub(b.Locked), amount)
	}
	before = b.Amount
	b.Amount = b.Amount.Sub(amount)
	b.LastUpdated = now
	u.Balances[ft] = b
	u.touch(now)
	return before, b.Amount, nil
}

// Forfeit removes amount regardless of locks, clamping locked to what remains.
// Used when funds disappear outside the user's control, such as promo expiry.
func (u *UserFunds) Forfeit(ft FundType, amount decimal.Decimal, now time.Time) (before, after decimal.Decimal) {
	b := u.Balance(ft)
	before = b.Amount
	b.Amount = decimal.Max(b.Amount.Sub(amount), decimal.Zero)
	if b.Locked.GreaterThan(b.Amount) {
		b.Locked = b.Amount
	}
	b.LastUpdated = now
	u.Balances[ft] = b
	u.touch(now)
	return before, b.Amount
}

// Lock reserves part of the available balance
func (u *UserFunds) Lock(ft FundType, amount decimal.Decimal, now time.Time) error {
	b := u.Balance(ft)
	if b.Amount.Sub(b.Locked).LessThan(amount) {
		return NewLedgerError(ErrCodeInsufficientFunds,
			"cannot lock %s %s funds: only %s available", amount, ft, b.Amount.Sub(b.Locked))
	}
	b.Locked = b.Locked.Add(amount)
	b.LastUpdated = now
	u.Balances[ft] = b
	u.touch(now)
	return nil
}

// Unlock releases a reservation. Locked never drops below zero.
func (u *UserFunds) Unlock(ft FundType, amount decimal.Decimal, now time.Time) {
	b := u.Balance(ft)
	b.Locked = decimal.Max(b.Locked.Sub(amount), decimal.Zero)
	b.LastUpdated = now
	u.Balances[ft] = b
	u.touch(now)
}

// Recompute derives available and the aggregate totals from amount and locked
func (u *UserFunds) Recompute() {
	total := decimal.Zero
	available := decimal.Zero
	for _, ft := range AllFundTypes {
		b := u.Balance(ft)
		b.Available = b.Amount.Sub(b.Locked)
		u.Balances[ft] = b
		total = total.Add(b.Amount)
		available = available.Add(b.Available)
	}
	u.TotalBalance = total
	u.TotalAvailable = available
}

// Validate checks the balance invariants
func (u *UserFunds) Validate() error {
	total := decimal.Zero
	available := decimal.Zero
	for _, ft := range AllFundTypes {
		b := u.Balance(ft)
		if b.Locked.IsNegative() || b.Available.IsNegative() {
			return fmt.Errorf("%s balance has negative locked or available", ft)
		}
		if b.Available.GreaterThan(b.Amount) {
			return fmt.Errorf("%s available %s exceeds amount %s", ft, b.Available, b.Amount)
		}
		if !b.Locked.Equal(b.Amount.Sub(b.Available)) {
			return fmt.Errorf("%s locked %s does not match amount minus available", ft, b.Locked)
		}
		total = total.Add(b.Amount)
		available = available.Add(b.Available)
	}
	if !u.TotalBalance.Equal(total) {
		return fmt.Errorf("total balance %s does not equal sum %s", u.TotalBalance, total)
	}
	if !u.TotalAvailable.Equal(available) {
		return fmt.Errorf("total available %s does not equal sum %s", u.TotalAvailable, available)
	}
	return nil
}

// Snapshot returns a copy of the balances map suitable for returning to callers
func (u *UserFunds) Snapshot() map[FundType]FundBalance {
	out := make(map[FundType]FundBalance, len(u.Balances))
	for ft, b := range u.Balances {
		out[ft] = b
	}
	return out
}

// Clone returns a deep copy of the record
func (u *UserFunds) Clone() *UserFunds {
	c := *u
	c.Balances = u.Snapshot()
	return &c
}

func (u *UserFunds) touch(now time.Time) {
	u.LastUpdated = now
	u.Recompute()
}
