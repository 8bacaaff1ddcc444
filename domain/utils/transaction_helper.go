package utils

import (
	"context"
	"fmt"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordFundTransaction appends a transaction row and emits the matching
// FundsChangedEvent. This is the single entry point for writing the ledger.
func RecordFundTransaction(ctx context.Context, txRepo interfaces.FundTransactionRepository, eventPublisher interfaces.EventPublisher, tx *entities.FundTransaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("refusing to record inconsistent transaction: %w", err)
	}

	if err := txRepo.Append(ctx, tx); err != nil {
		return fmt.Errorf("failed to record fund transaction: %w", err)
	}

	event := events.FundsChangedEvent{
		UserID:          tx.UserID,
		TransactionID:   tx.ID,
		TransactionType: tx.Type,
		FundType:        tx.FundType,
		Direction:       tx.Direction,
		Amount:          tx.Amount,
		BalanceBefore:   tx.BalanceBefore,
		BalanceAfter:    tx.BalanceAfter,
		CorrelationID:   tx.CorrelationID,
		OccurredAt:      tx.CreatedAt,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"transactionID":   event.TransactionID,
		"transactionType": event.TransactionType,
		"fundType":        event.FundType,
		"amount":          event.Amount.String(),
		"balanceAfter":    event.BalanceAfter.String(),
	}).Debug("Publishing FundsChangedEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish funds changed event")
	}

	return nil
}
