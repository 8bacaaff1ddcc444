package services

import (
	"context"
	"fmt"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"

	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// transactionLogService is the read path over balances history and promo grants
type transactionLogService struct {
	uowFactory interfaces.UnitOfWorkFactory
}

// NewTransactionLogService creates a new transaction log service
func NewTransactionLogService(uowFactory interfaces.UnitOfWorkFactory) interfaces.TransactionLogService {
	return &transactionLogService{uowFactory: uowFactory}
}

func (s *transactionLogService) withReadOnly(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()
	return fn(uow)
}

// ListTransactions returns a user's history newest first, optionally for one fund type
func (s *transactionLogService) ListTransactions(ctx context.Context, userID string, fundType *entities.FundType, limit int) ([]*entities.FundTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var transactions []*entities.FundTransaction
	err := s.withReadOnly(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		transactions, err = uow.FundTransactionRepository().List(ctx, entities.TransactionFilter{
			UserID:   userID,
			FundType: fundType,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list transactions for user %s: %w", userID, err)
		}
		return nil
	})
	return transactions, err
}

// GetTransaction returns one transaction, or nil when it does not exist
func (s *transactionLogService) GetTransaction(ctx context.Context, transactionID string) (*entities.FundTransaction, error) {
	var transaction *entities.FundTransaction
	err := s.withReadOnly(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		transaction, err = uow.FundTransactionRepository().GetByID(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
		}
		return nil
	})
	return transaction, err
}

// ListPromoFunds returns all of a user's grants, newest first
func (s *transactionLogService) ListPromoFunds(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	var promos []*entities.PromoFund
	err := s.withReadOnly(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		promos, err = uow.PromoFundRepository().ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list promos for user %s: %w", userID, err)
		}
		return nil
	})
	return promos, err
}

// Reconcile checks that every balance equals the signed sum of its transactions.
// Returns nil when the user has no funds record.
func (s *transactionLogService) Reconcile(ctx context.Context, userID string) (*interfaces.ReconciliationReport, error) {
	var report *interfaces.ReconciliationReport
	err := s.withReadOnly(ctx, func(uow interfaces.UnitOfWork) error {
		funds, err := uow.UserFundsRepository().Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get funds for user %s: %w", userID, err)
		}
		if funds == nil {
			return nil
		}

		sums, err := uow.FundTransactionRepository().SumByFundType(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to sum transactions for user %s: %w", userID, err)
		}

		report = &interfaces.ReconciliationReport{
			UserID:     userID,
			Balanced:   true,
			Balances:   make(map[entities.FundType]decimal.Decimal, len(entities.AllFundTypes)),
			LedgerSums: make(map[entities.FundType]decimal.Decimal, len(entities.AllFundTypes)),
		}
		for _, ft := range entities.AllFundTypes {
			balance := funds.Balance(ft).Amount
			sum := sums[ft]
			report.Balances[ft] = balance
			report.LedgerSums[ft] = sum
			if !balance.Equal(sum) {
				report.Balanced = false
				report.Mismatches = append(report.Mismatches, ft)
			}
		}
		return nil
	})
	return report, err
}
