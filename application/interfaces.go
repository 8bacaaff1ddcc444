package application

import (
	"context"

	"fundsledger/application/dto"
)

// WithdrawalSettlementHandler applies payment rail outcomes to pending withdrawals.
// It is implemented by the application layer and called by the infrastructure layer.
type WithdrawalSettlementHandler interface {
	// HandleWithdrawalSettled moves the withdrawal to the reported status.
	// Returning an error asks the transport to redeliver the message.
	HandleWithdrawalSettled(ctx context.Context, settled dto.WithdrawalSettledDTO) error
}
