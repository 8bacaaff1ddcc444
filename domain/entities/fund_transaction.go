package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance mutation a transaction records
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdrawal     TransactionType = "withdrawal"
	TransactionTypeTransferIn     TransactionType = "transfer_in"
	TransactionTypeTransferOut    TransactionType = "transfer_out"
	TransactionTypeBetPlaced      TransactionType = "bet_placed"
	TransactionTypeBetWon         TransactionType = "bet_won"
	TransactionTypeBetLost        TransactionType = "bet_lost"
	TransactionTypeGameSpent      TransactionType = "game_spent"
	TransactionTypeGameWon        TransactionType = "game_won"
	TransactionTypePromoGranted   TransactionType = "promo_granted"
	TransactionTypePromoExpired   TransactionType = "promo_expired"
	TransactionTypePromoConverted TransactionType = "promo_converted"
	TransactionTypeFee            TransactionType = "fee"
	TransactionTypeRefund         TransactionType = "refund"
	TransactionTypeReversal       TransactionType = "reversal"
)

// Direction says whether a transaction added to or removed from a balance
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}

// DefaultDirection returns the direction implied by the transaction type.
// PromoConverted and Reversal rows carry their direction explicitly.
func (tt TransactionType) DefaultDirection() Direction {
	switch tt {
	case TransactionTypeDeposit,
		TransactionTypeTransferIn,
		TransactionTypeBetWon,
		TransactionTypeGameWon,
		TransactionTypePromoGranted,
		TransactionTypeRefund:
		return DirectionCredit
	}
	return DirectionDebit
}

// String returns the string representation of the transaction type
func (tt TransactionType) String() string {
	return string(tt)
}

// Reversible reports whether a row of this type can be undone on its own.
// Transfer legs and bet stakes are paired with other rows, and promo rows
// settle through refunds and expiry.
func (tt TransactionType) Reversible() bool {
	switch tt {
	case TransactionTypeDeposit,
		TransactionTypeWithdrawal,
		TransactionTypeBetWon,
		TransactionTypeGameSpent,
		TransactionTypeGameWon,
		TransactionTypeFee:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a transaction
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusReversed   TransactionStatus = "reversed"
)

var statusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusProcessing,
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusProcessing: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusCompleted: {
		TransactionStatusReversed,
	},
}

// CanTransition reports whether moving from s to next is a legal status change
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
// Completed is not terminal because it may still be reversed.
func (s TransactionStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// FundTransaction is one audited balance mutation on a single fund type
type FundTransaction struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Type          TransactionType     `json:"type"`
	FundType      FundType            `json:"fund_type"`
	Direction     Direction           `json:"direction"`
	Amount        decimal.Decimal     `json:"amount"`
	BalanceBefore decimal.Decimal     `json:"balance_before"`
	BalanceAfter  decimal.Decimal     `json:"balance_after"`
	Status        TransactionStatus   `json:"status"`
	Description   string              `json:"description,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	ReferenceID   string              `json:"reference_id,omitempty"`
	Metadata      TransactionMetadata `json:"metadata,omitempty"`
	Annotations   map[string]string   `json:"annotations,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// SignedAmount returns the amount as a balance delta
func (t *FundTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate checks that the recorded before/after balances match the direction and amount
func (t *FundTransaction) Validate() error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", t.Amount)
	}
	if !t.FundType.Valid() {
		return fmt.Errorf("transaction has invalid fund type %q", t.FundType)
	}
	if t.Direction != DirectionCredit && t.Direction != DirectionDebit {
		return fmt.Errorf("transaction has invalid direction %q", t.Direction)
	}
	if !t.BalanceAfter.Sub(t.BalanceBefore).Equal(t.SignedAmount()) {
		return fmt.Errorf("balance delta %s does not match %s of %s",
			t.BalanceAfter.Sub(t.BalanceBefore), t.Direction, t.Amount)
	}
	return nil
}

// TransactionFilter narrows a history query
type TransactionFilter struct {
	UserID   string
	FundType *FundType
	Limit    int
}
