package events

import (
	"time"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeFundsChanged             EventType = "funds_changed"
	EventTypeWithdrawalRequested      EventType = "withdrawal_requested"
	EventTypeTransactionStatusChanged EventType = "transaction_status_changed"
	EventTypePromoExpired             EventType = "promo_expired"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// FundsChangedEvent is emitted for every transaction row that moves a balance
type FundsChangedEvent struct {
	UserID          string                   `json:"user_id"`
	TransactionID   string                   `json:"transaction_id"`
	TransactionType entities.TransactionType `json:"transaction_type"`
	FundType        entities.FundType        `json:"fund_type"`
	Direction       entities.Direction       `json:"direction"`
	Amount          decimal.Decimal          `json:"amount"`
	BalanceBefore   decimal.Decimal          `json:"balance_before"`
	BalanceAfter    decimal.Decimal          `json:"balance_after"`
	CorrelationID   string                   `json:"correlation_id,omitempty"`
	OccurredAt      time.Time                `json:"occurred_at"`
}

func (e FundsChangedEvent) Type() EventType {
	return EventTypeFundsChanged
}

// WithdrawalRequestedEvent asks the payment rail to settle a pending withdrawal
type WithdrawalRequestedEvent struct {
	UserID              string          `json:"user_id"`
	TransactionID       string          `json:"transaction_id"`
	Amount              decimal.Decimal `json:"amount"`
	WithdrawalMethodRef string          `json:"withdrawal_method_ref"`
}

func (e WithdrawalRequestedEvent) Type() EventType {
	return EventTypeWithdrawalRequested
}

// TransactionStatusChangedEvent records a settlement state change
type TransactionStatusChangedEvent struct {
	UserID        string                     `json:"user_id"`
	TransactionID string                     `json:"transaction_id"`
	OldStatus     entities.TransactionStatus `json:"old_status"`
	NewStatus     entities.TransactionStatus `json:"new_status"`
	Reason        string                     `json:"reason,omitempty"`
}

func (e TransactionStatusChangedEvent) Type() EventType {
	return EventTypeTransactionStatusChanged
}

// PromoExpiredEvent is emitted when the expiry pass forfeits a grant
type PromoExpiredEvent struct {
	UserID          string          `json:"user_id"`
	PromoID         string          `json:"promo_id"`
	ForfeitedAmount decimal.Decimal `json:"forfeited_amount"`
}

func (e PromoExpiredEvent) Type() EventType {
	return EventTypePromoExpired
}
