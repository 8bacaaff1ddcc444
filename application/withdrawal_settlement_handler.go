package application

import (
	"context"
	"fmt"

	"fundsledger/application/dto"
	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// withdrawalSettlementHandler implements the WithdrawalSettlementHandler interface
type withdrawalSettlementHandler struct {
	settlement interfaces.SettlementService
}

// NewWithdrawalSettlementHandler creates a new WithdrawalSettlementHandler
func NewWithdrawalSettlementHandler(settlement interfaces.SettlementService) WithdrawalSettlementHandler {
	return &withdrawalSettlementHandler{settlement: settlement}
}

// HandleWithdrawalSettled routes the outcome to the matching settlement operation.
// Business rejections are logged and acknowledged since redelivery cannot change them;
// storage faults are returned so the message is redelivered.
func (h *withdrawalSettlementHandler) HandleWithdrawalSettled(ctx context.Context, settled dto.WithdrawalSettledDTO) error {
	if settled.TransactionID == "" {
		log.WithField("outcome", settled.Outcome).Warn("Ignoring withdrawal settlement without transaction id")
		return nil
	}

	var (
		result *entities.OperationResult
		err    error
	)
	switch settled.Outcome {
	case dto.SettlementOutcomeProcessing:
		result, err = h.settlement.MarkWithdrawalProcessing(ctx, settled.TransactionID)
	case dto.SettlementOutcomeCompleted:
		result, err = h.settlement.CompleteWithdrawal(ctx, settled.TransactionID)
	case dto.SettlementOutcomeFailed:
		result, err = h.settlement.FailWithdrawal(ctx, settled.TransactionID, settled.Reason)
	case dto.SettlementOutcomeCancelled:
		result, err = h.settlement.CancelWithdrawal(ctx, settled.TransactionID, settled.Reason)
	default:
		log.WithFields(log.Fields{
			"transactionID": settled.TransactionID,
			"outcome":       settled.Outcome,
		}).Warn("Ignoring withdrawal settlement with unknown outcome")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s settlement to %s: %w", settled.Outcome, settled.TransactionID, err)
	}

	fields := log.Fields{
		"transactionID": settled.TransactionID,
		"outcome":       settled.Outcome,
	}
	if !result.Success {
		// A SYSTEM_ERROR means retries ran out, which a redelivery may fix
		if result.ErrorCode == entities.ErrCodeSystemError {
			return fmt.Errorf("settlement of %s did not commit: %s", settled.TransactionID, result.Error)
		}
		fields["errorCode"] = result.ErrorCode
		fields["error"] = result.Error
		log.WithFields(fields).Warn("Withdrawal settlement rejected")
		return nil
	}

	log.WithFields(fields).Info("Applied withdrawal settlement")
	return nil
}
