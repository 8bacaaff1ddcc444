package infrastructure

import (
	"fmt"

	"fundsledger/domain/events"
)

// Subjects published by the ledger and consumed from the payment rail
const (
	SubjectFundsChanged             = "ledger.funds.changed"
	SubjectWithdrawalRequested      = "ledger.withdrawal.requested"
	SubjectTransactionStatusChanged = "ledger.transaction.status_changed"
	SubjectPromoExpired             = "ledger.promo.expired"

	SubjectWithdrawalSettled = "payments.withdrawal.settled"
)

// Stream names
const (
	LedgerEventStream  = "ledger_events"
	PaymentEventStream = "payment_events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeFundsChanged:
		return SubjectFundsChanged
	case events.EventTypeWithdrawalRequested:
		return SubjectWithdrawalRequested
	case events.EventTypeTransactionStatusChanged:
		return SubjectTransactionStatusChanged
	case events.EventTypePromoExpired:
		return SubjectPromoExpired
	default:
		return fmt.Sprintf("ledger.unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectFundsChanged,
		SubjectWithdrawalRequested,
		SubjectTransactionStatusChanged,
		SubjectPromoExpired,
	}
}
