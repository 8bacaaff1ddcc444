package entities

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable vocabulary callers map to user-facing text
type ErrorCode string

const (
	ErrCodeInsufficientFunds       ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidFundType         ErrorCode = "INVALID_FUND_TYPE"
	ErrCodeOperationNotAllowed     ErrorCode = "OPERATION_NOT_ALLOWED"
	ErrCodeUserNotFound            ErrorCode = "USER_NOT_FOUND"
	ErrCodeInvalidAmount           ErrorCode = "INVALID_AMOUNT"
	ErrCodeWithdrawalLimitExceeded ErrorCode = "WITHDRAWAL_LIMIT_EXCEEDED"
	ErrCodeTransferLimitExceeded   ErrorCode = "TRANSFER_LIMIT_EXCEEDED"
	ErrCodePromoExpired            ErrorCode = "PROMO_EXPIRED"
	ErrCodeRequirementsNotMet      ErrorCode = "REQUIREMENTS_NOT_MET"
	ErrCodeTransactionFailed       ErrorCode = "TRANSACTION_FAILED"
	ErrCodeSystemError             ErrorCode = "SYSTEM_ERROR"
)

// LedgerError is an expected business or validation failure. It never
// represents a storage fault.
type LedgerError struct {
	Code    ErrorCode
	Message string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewLedgerError builds a LedgerError with a formatted message
func NewLedgerError(code ErrorCode, format string, args ...any) *LedgerError {
	return &LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsLedgerError unwraps err looking for a LedgerError
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// IsCode reports whether err is a LedgerError carrying the given code
func IsCode(err error, code ErrorCode) bool {
	ledgerErr, ok := AsLedgerError(err)
	return ok && ledgerErr.Code == code
}
