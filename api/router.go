// Package api exposes the ledger over HTTP. Amounts travel as decimal strings.
package api

import (
	"context"

	"fundsledger/domain/interfaces"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the services the HTTP layer calls into
type Dependencies struct {
	Ledger         interfaces.LedgerService
	Settlement     interfaces.SettlementService
	TransactionLog interfaces.TransactionLogService

	// Health reports whether the backing store is reachable
	Health func(ctx context.Context) error

	// AdminAPIKey guards operator routes. Empty disables the check.
	AdminAPIKey string
}

// NewRouter builds the HTTP routes
func NewRouter(deps Dependencies) *chi.Mux {
	h := &handlers{
		ledger:     deps.Ledger,
		settlement: deps.Settlement,
		txLog:      deps.TransactionLog,
		health:     deps.Health,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/funds", h.getUserFunds)
			r.Post("/open", h.openAccount)
			r.Post("/deposits", h.deposit)
			r.Post("/withdrawals", h.withdraw)
			r.Post("/bets", h.placeBet)
			r.Post("/bets/{betID}/winnings", h.creditBetWinnings)
			r.Post("/bets/{betID}/refund", h.refundBet)
			r.Get("/promos", h.listPromoFunds)
			r.Post("/promos/{promoID}/convert", h.convertPromo)
			r.Post("/locks", h.lockFunds)
			r.Post("/unlocks", h.unlockFunds)
			r.Get("/transactions", h.listTransactions)

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(deps.AdminAPIKey))
				r.Post("/close", h.closeAccount)
				r.Post("/promos", h.grantPromo)
				r.Get("/reconciliation", h.reconcile)
			})
		})

		r.Post("/transfers", h.transfer)
		r.Get("/transactions/{txID}", h.getTransaction)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(deps.AdminAPIKey))
			r.Post("/transactions/{txID}/reverse", h.reverseTransaction)
			r.Post("/withdrawals/{txID}/processing", h.markWithdrawalProcessing)
			r.Post("/withdrawals/{txID}/complete", h.completeWithdrawal)
			r.Post("/withdrawals/{txID}/fail", h.failWithdrawal)
			r.Post("/withdrawals/{txID}/cancel", h.cancelWithdrawal)
		})
	})

	return r
}
