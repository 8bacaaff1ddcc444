package infrastructure

import (
	"context"
	"encoding/json"

	"fundsledger/application"
	"fundsledger/application/dto"

	log "github.com/sirupsen/logrus"
)

// PaymentEventListener decodes payment rail messages into application DTOs
type PaymentEventListener struct {
	settlementHandler application.WithdrawalSettlementHandler
}

// NewPaymentEventListener creates a new payment event listener
func NewPaymentEventListener(settlementHandler application.WithdrawalSettlementHandler) *PaymentEventListener {
	return &PaymentEventListener{settlementHandler: settlementHandler}
}

// HandleWithdrawalSettled processes payments.withdrawal.settled messages.
// Undecodable payloads are dropped because redelivering them cannot succeed.
func (l *PaymentEventListener) HandleWithdrawalSettled(ctx context.Context, data []byte) error {
	var settled dto.WithdrawalSettledDTO
	if err := json.Unmarshal(data, &settled); err != nil {
		log.WithFields(log.Fields{
			"subject": SubjectWithdrawalSettled,
			"size":    len(data),
			"error":   err,
		}).Error("Dropping malformed withdrawal settlement message")
		return nil
	}

	log.WithFields(log.Fields{
		"transactionID": settled.TransactionID,
		"outcome":       settled.Outcome,
	}).Debug("Processing withdrawal settlement")

	return l.settlementHandler.HandleWithdrawalSettled(ctx, settled)
}

// RegisterPaymentSubscriptions wires the payment rail subjects into the consumer
func RegisterPaymentSubscriptions(consumer *MessageConsumer, settlementHandler application.WithdrawalSettlementHandler) {
	listener := NewPaymentEventListener(settlementHandler)
	consumer.RegisterHandler(SubjectWithdrawalSettled, listener.HandleWithdrawalSettled)
}
