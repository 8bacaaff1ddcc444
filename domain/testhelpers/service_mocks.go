package testhelpers

import (
	"context"
	"time"

	"fundsledger/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockSettlementService is a mock implementation of SettlementService
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) result(args mock.Arguments) (*entities.OperationResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OperationResult), args.Error(1)
}

func (m *MockSettlementService) MarkWithdrawalProcessing(ctx context.Context, transactionID string) (*entities.OperationResult, error) {
	return m.result(m.Called(ctx, transactionID))
}

func (m *MockSettlementService) CompleteWithdrawal(ctx context.Context, transactionID string) (*entities.OperationResult, error) {
	return m.result(m.Called(ctx, transactionID))
}

func (m *MockSettlementService) FailWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return m.result(m.Called(ctx, transactionID, reason))
}

func (m *MockSettlementService) CancelWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return m.result(m.Called(ctx, transactionID, reason))
}

func (m *MockSettlementService) ReverseTransaction(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return m.result(m.Called(ctx, transactionID, reason))
}

// MockPromoExpiryService is a mock implementation of PromoExpiryService
type MockPromoExpiryService struct {
	mock.Mock
}

func (m *MockPromoExpiryService) ExpirePromos(ctx context.Context, now time.Time, batchSize int) (int, error) {
	args := m.Called(ctx, now, batchSize)
	return args.Int(0), args.Error(1)
}
