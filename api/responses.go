package api

import (
	"encoding/json"
	"net/http"

	"fundsledger/domain/entities"

	log "github.com/sirupsen/logrus"
)

// errorBody is returned for failures that never reached the ledger
type errorBody struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error"`
	ErrorCode entities.ErrorCode `json:"error_code,omitempty"`
}

var statusByCode = map[entities.ErrorCode]int{
	entities.ErrCodeInvalidAmount:           http.StatusBadRequest,
	entities.ErrCodeInvalidFundType:         http.StatusBadRequest,
	entities.ErrCodeUserNotFound:            http.StatusNotFound,
	entities.ErrCodeInsufficientFunds:       http.StatusConflict,
	entities.ErrCodeOperationNotAllowed:     http.StatusConflict,
	entities.ErrCodeTransactionFailed:       http.StatusConflict,
	entities.ErrCodePromoExpired:            http.StatusConflict,
	entities.ErrCodeRequirementsNotMet:      http.StatusUnprocessableEntity,
	entities.ErrCodeWithdrawalLimitExceeded: http.StatusUnprocessableEntity,
	entities.ErrCodeTransferLimitExceeded:   http.StatusUnprocessableEntity,
	entities.ErrCodeSystemError:             http.StatusServiceUnavailable,
}

// StatusForCode maps a ledger error code to an HTTP status
func StatusForCode(code entities.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeResult renders an operation result, or a 500 when the ledger returned a fault
func writeResult(w http.ResponseWriter, r *http.Request, result *entities.OperationResult, err error) {
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = StatusForCode(result.ErrorCode)
	}
	writeJSON(w, status, result)
}

func writeBadRequest(w http.ResponseWriter, code entities.ErrorCode, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Success: false, Error: message, ErrorCode: code})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, errorBody{Success: false, Error: message})
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err,
	}).Error("Ledger request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Success: false, Error: "internal error"})
}
