package entities

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MetadataKind tags the concrete metadata type stored with a transaction
type MetadataKind string

const (
	MetadataKindDeposit    MetadataKind = "deposit"
	MetadataKindWithdrawal MetadataKind = "withdrawal"
	MetadataKindTransfer   MetadataKind = "transfer"
	MetadataKindBet        MetadataKind = "bet"
	MetadataKindPromo      MetadataKind = "promo"
	MetadataKindReversal   MetadataKind = "reversal"
)

// TransactionMetadata is implemented by every typed metadata payload
type TransactionMetadata interface {
	Kind() MetadataKind
}

type DepositMetadata struct {
	PaymentMethodRef string `json:"payment_method_ref"`
}

func (DepositMetadata) Kind() MetadataKind { return MetadataKindDeposit }

type WithdrawalMetadata struct {
	WithdrawalMethodRef string `json:"withdrawal_method_ref"`
}

func (WithdrawalMetadata) Kind() MetadataKind { return MetadataKindWithdrawal }

type TransferMetadata struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

func (TransferMetadata) Kind() MetadataKind { return MetadataKindTransfer }

// PromoDraw records how much of one promo grant a bet consumed
type PromoDraw struct {
	PromoID string          `json:"promo_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type BetMetadata struct {
	PlatformID     string          `json:"platform_id"`
	BetID          string          `json:"bet_id"`
	TotalBetAmount decimal.Decimal `json:"total_bet_amount"`
	PromoDraws     []PromoDraw     `json:"promo_draws,omitempty"`
}

func (BetMetadata) Kind() MetadataKind { return MetadataKindBet }

type PromoMetadata struct {
	PromoID string `json:"promo_id"`
	Source  string `json:"source,omitempty"`
}

func (PromoMetadata) Kind() MetadataKind { return MetadataKindPromo }

type ReversalMetadata struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	Reason                string `json:"reason,omitempty"`
}

func (ReversalMetadata) Kind() MetadataKind { return MetadataKindReversal }

type metadataEnvelope struct {
	Kind MetadataKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalMetadata encodes metadata as a {kind, data} envelope. Nil metadata encodes to nil.
func MarshalMetadata(m TransactionMetadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s metadata: %w", m.Kind(), err)
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

// UnmarshalMetadata decodes an envelope produced by MarshalMetadata
func UnmarshalMetadata(raw []byte) (TransactionMetadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata envelope: %w", err)
	}

	var target TransactionMetadata
	switch env.Kind {
	case MetadataKindDeposit:
		var m DepositMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deposit metadata: %w", err)
		}
		target = m
	case MetadataKindWithdrawal:
		var m WithdrawalMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal withdrawal metadata: %w", err)
		}
		target = m
	case MetadataKindTransfer:
		var m TransferMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transfer metadata: %w", err)
		}
		target = m
	case MetadataKindBet:
		var m BetMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bet metadata: %w", err)
		}
		target = m
	case MetadataKindPromo:
		var m PromoMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal promo metadata: %w", err)
		}
		target = m
	case MetadataKindReversal:
		var m ReversalMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reversal metadata: %w", err)
		}
		target = m
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", env.Kind)
	}
	return target, nil
}
