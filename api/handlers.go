package api

import (
	"context"
	"net/http"
	"strconv"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	ledger     interfaces.LedgerService
	settlement interfaces.SettlementService
	txLog      interfaces.TransactionLogService
	health     func(ctx context.Context) error
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// accounts

func (h *handlers) getUserFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.ledger.GetUserFunds(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

func (h *handlers) openAccount(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.OpenAccount(r.Context(), chi.URLParam(r, "userID"))
	writeResult(w, r, result, err)
}

func (h *handlers) closeAccount(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.CloseAccount(r.Context(), chi.URLParam(r, "userID"))
	writeResult(w, r, result, err)
}

// money movement

func (h *handlers) deposit(w http.ResponseWriter, r *http.Request) {
	var body depositRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.Deposit(r.Context(), interfaces.DepositRequest{
		UserID:           chi.URLParam(r, "userID"),
		Amount:           body.Amount,
		FundType:         body.FundType,
		PaymentMethodRef: body.PaymentMethodRef,
		Description:      body.Description,
		Annotations:      body.Annotations,
	})
	writeResult(w, r, result, err)
}

func (h *handlers) withdraw(w http.ResponseWriter, r *http.Request) {
	var body withdrawRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.Withdraw(r.Context(), interfaces.WithdrawRequest{
		UserID:              chi.URLParam(r, "userID"),
		Amount:              body.Amount,
		WithdrawalMethodRef: body.WithdrawalMethodRef,
		Description:         body.Description,
		Annotations:         body.Annotations,
	})
	writeResult(w, r, result, err)
}

func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.Transfer(r.Context(), interfaces.TransferRequest{
		FromUserID:  body.FromUserID,
		ToUserID:    body.ToUserID,
		Amount:      body.Amount,
		FundType:    body.FundType,
		Description: body.Description,
		Annotations: body.Annotations,
	})
	writeResult(w, r, result, err)
}

// bets

func (h *handlers) placeBet(w http.ResponseWriter, r *http.Request) {
	var body placeBetRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.PlaceBet(r.Context(), interfaces.PlaceBetRequest{
		UserID:       chi.URLParam(r, "userID"),
		Amount:       body.Amount,
		PlatformID:   body.PlatformID,
		BetID:        body.BetID,
		FundPriority: body.FundPriority,
		Odds:         body.Odds,
		Annotations:  body.Annotations,
	})
	writeResult(w, r, result, err)
}

func (h *handlers) creditBetWinnings(w http.ResponseWriter, r *http.Request) {
	var body betWinningsRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.CreditBetWinnings(r.Context(), interfaces.BetWinningsRequest{
		UserID:     chi.URLParam(r, "userID"),
		Amount:     body.Amount,
		PlatformID: body.PlatformID,
		BetID:      chi.URLParam(r, "betID"),
	})
	writeResult(w, r, result, err)
}

func (h *handlers) refundBet(w http.ResponseWriter, r *http.Request) {
	var body reasonRequest
	if err := decodeBody(r, &body, true); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := h.ledger.RefundBet(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "betID"), body.Reason)
	writeResult(w, r, result, err)
}

// promos

func (h *handlers) grantPromo(w http.ResponseWriter, r *http.Request) {
	var body grantPromoRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	req := interfaces.GrantPromoRequest{
		UserID:        chi.URLParam(r, "userID"),
		Amount:        body.Amount,
		Source:        body.Source,
		ExpiresInDays: body.ExpiresInDays,
		Annotations:   body.Annotations,
	}
	if body.Requirements != nil {
		req.Requirements = &interfaces.PromoRequirementsInput{
			WageringMultiplier: body.Requirements.WageringMultiplier,
			MinOdds:            body.Requirements.MinOdds,
			EligiblePlatforms:  body.Requirements.EligiblePlatforms,
			MaxWinnings:        body.Requirements.MaxWinnings,
		}
	}
	result, err := h.ledger.GrantPromo(r.Context(), req)
	writeResult(w, r, result, err)
}

func (h *handlers) listPromoFunds(w http.ResponseWriter, r *http.Request) {
	promos, err := h.txLog.ListPromoFunds(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if promos == nil {
		promos = []*entities.PromoFund{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"promos": promos})
}

func (h *handlers) convertPromo(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.ConvertPromoToCash(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "promoID"))
	writeResult(w, r, result, err)
}

// locks

func (h *handlers) lockFunds(w http.ResponseWriter, r *http.Request) {
	h.changeLock(w, r, h.ledger.LockFunds)
}

func (h *handlers) unlockFunds(w http.ResponseWriter, r *http.Request) {
	h.changeLock(w, r, h.ledger.UnlockFunds)
}

func (h *handlers) changeLock(w http.ResponseWriter, r *http.Request, apply func(context.Context, interfaces.FundsLockRequest) (bool, error)) {
	var body fundsLockRequest
	if err := decodeBody(r, &body, false); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	ok, err := apply(r.Context(), interfaces.FundsLockRequest{
		UserID:   chi.URLParam(r, "userID"),
		FundType: body.FundType,
		Amount:   body.Amount,
	})
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"success": ok})
}

// history

func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var fundType *entities.FundType
	if raw := query.Get("fund_type"); raw != "" {
		ft, err := entities.ParseFundType(raw)
		if err != nil {
			writeBadRequest(w, entities.ErrCodeInvalidFundType, err.Error())
			return
		}
		fundType = &ft
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	transactions, err := h.txLog.ListTransactions(r.Context(), chi.URLParam(r, "userID"), fundType, limit)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []*entities.FundTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

func (h *handlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")
	transaction, err := h.txLog.GetTransaction(r.Context(), txID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if transaction == nil {
		writeNotFound(w, "transaction "+txID+" not found")
		return
	}
	writeJSON(w, http.StatusOK, transaction)
}

func (h *handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	report, err := h.txLog.Reconcile(r.Context(), userID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if report == nil {
		writeNotFound(w, "no funds recorded for user "+userID)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// settlement

func (h *handlers) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.settlement.ReverseTransaction)
}

func (h *handlers) markWithdrawalProcessing(w http.ResponseWriter, r *http.Request) {
	result, err := h.settlement.MarkWithdrawalProcessing(r.Context(), chi.URLParam(r, "txID"))
	writeResult(w, r, result, err)
}

func (h *handlers) completeWithdrawal(w http.ResponseWriter, r *http.Request) {
	result, err := h.settlement.CompleteWithdrawal(r.Context(), chi.URLParam(r, "txID"))
	writeResult(w, r, result, err)
}

func (h *handlers) failWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.settlement.FailWithdrawal)
}

func (h *handlers) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.settlement.CancelWithdrawal)
}

// settle runs a settlement operation that takes an optional reason in the body
func (h *handlers) settle(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error)) {
	var body reasonRequest
	if err := decodeBody(r, &body, true); err != nil {
		writeBadRequest(w, "", err.Error())
		return
	}
	result, err := apply(r.Context(), chi.URLParam(r, "txID"), body.Reason)
	writeResult(w, r, result, err)
}
