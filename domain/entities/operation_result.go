package entities

import "github.com/shopspring/decimal"

// Allocation is the share of a bet drawn from one fund type
type Allocation struct {
	FundType FundType        `json:"fund_type"`
	Amount   decimal.Decimal `json:"amount"`
}

// OperationResult is returned by every ledger mutation. Business failures are
// reported here rather than as Go errors.
type OperationResult struct {
	Success        bool                     `json:"success"`
	TransactionID  string                   `json:"transaction_id,omitempty"`
	TransactionIDs []string                 `json:"transaction_ids,omitempty"`
	CorrelationID  string                   `json:"correlation_id,omitempty"`
	PromoID        string                   `json:"promo_id,omitempty"`
	Allocations    []Allocation             `json:"allocations,omitempty"`
	NewBalances    map[FundType]FundBalance `json:"new_balances,omitempty"`
	Error          string                   `json:"error,omitempty"`
	ErrorCode      ErrorCode                `json:"error_code,omitempty"`
}

// FailedResult converts a LedgerError into a failed result
func FailedResult(err *LedgerError) *OperationResult {
	return &OperationResult{
		Success:   false,
		Error:     err.Message,
		ErrorCode: err.Code,
	}
}

// SucceededResult builds a successful result from the rows an operation wrote.
// The first transaction becomes the primary TransactionID.
func SucceededResult(funds *UserFunds, transactions ...*FundTransaction) *OperationResult {
	result := &OperationResult{Success: true}
	for _, tx := range transactions {
		result.TransactionIDs = append(result.TransactionIDs, tx.ID)
	}
	if len(transactions) > 0 {
		result.TransactionID = transactions[0].ID
		result.CorrelationID = transactions[0].CorrelationID
	}
	if funds != nil {
		result.NewBalances = funds.Snapshot()
	}
	return result
}
