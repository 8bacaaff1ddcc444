package dto

// SettlementOutcome is the payment rail's verdict on a pending withdrawal
type SettlementOutcome string

const (
	SettlementOutcomeProcessing SettlementOutcome = "processing"
	SettlementOutcomeCompleted  SettlementOutcome = "completed"
	SettlementOutcomeFailed     SettlementOutcome = "failed"
	SettlementOutcomeCancelled  SettlementOutcome = "cancelled"
)

// WithdrawalSettledDTO is the payload of payments.withdrawal.settled
type WithdrawalSettledDTO struct {
	TransactionID string            `json:"transactionId"`
	Outcome       SettlementOutcome `json:"outcome"`
	Reason        string            `json:"reason,omitempty"`
}
