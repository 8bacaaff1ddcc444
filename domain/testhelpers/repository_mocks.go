package testhelpers

import (
	"context"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserFundsRepository is a mock implementation of UserFundsRepository
type MockUserFundsRepository struct {
	mock.Mock
}

func (m *MockUserFundsRepository) Get(ctx context.Context, userID string) (*entities.UserFunds, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserFunds), args.Error(1)
}

func (m *MockUserFundsRepository) GetForUpdate(ctx context.Context, userID string) (*entities.UserFunds, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserFunds), args.Error(1)
}

func (m *MockUserFundsRepository) Create(ctx context.Context, funds *entities.UserFunds) error {
	args := m.Called(ctx, funds)
	return args.Error(0)
}

func (m *MockUserFundsRepository) Update(ctx context.Context, funds *entities.UserFunds) error {
	args := m.Called(ctx, funds)
	return args.Error(0)
}

// MockFundTransactionRepository is a mock implementation of FundTransactionRepository
type MockFundTransactionRepository struct {
	mock.Mock
}

func (m *MockFundTransactionRepository) Append(ctx context.Context, tx *entities.FundTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockFundTransactionRepository) GetByID(ctx context.Context, id string) (*entities.FundTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FundTransaction), args.Error(1)
}

func (m *MockFundTransactionRepository) UpdateStatus(ctx context.Context, id string, status entities.TransactionStatus, failureReason string, at time.Time) error {
	args := m.Called(ctx, id, status, failureReason, at)
	return args.Error(0)
}

func (m *MockFundTransactionRepository) List(ctx context.Context, filter entities.TransactionFilter) ([]*entities.FundTransaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FundTransaction), args.Error(1)
}

func (m *MockFundTransactionRepository) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) ([]*entities.FundTransaction, error) {
	args := m.Called(ctx, userID, txType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FundTransaction), args.Error(1)
}

func (m *MockFundTransactionRepository) SumByFundType(ctx context.Context, userID string) (map[entities.FundType]decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.FundType]decimal.Decimal), args.Error(1)
}

// MockPromoFundRepository is a mock implementation of PromoFundRepository
type MockPromoFundRepository struct {
	mock.Mock
}

func (m *MockPromoFundRepository) Create(ctx context.Context, promo *entities.PromoFund) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockPromoFundRepository) GetByID(ctx context.Context, id string) (*entities.PromoFund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PromoFund), args.Error(1)
}

func (m *MockPromoFundRepository) Update(ctx context.Context, promo *entities.PromoFund) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockPromoFundRepository) ListActiveByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PromoFund), args.Error(1)
}

func (m *MockPromoFundRepository) ListByUser(ctx context.Context, userID string) ([]*entities.PromoFund, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PromoFund), args.Error(1)
}

func (m *MockPromoFundRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.PromoFund, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PromoFund), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockBalanceCache is a mock implementation of BalanceCache
type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) Get(ctx context.Context, userID string) (*entities.UserFunds, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserFunds), args.Error(1)
}

func (m *MockBalanceCache) Set(ctx context.Context, funds *entities.UserFunds) error {
	args := m.Called(ctx, funds)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, userIDs ...string) error {
	args := m.Called(ctx, userIDs)
	return args.Error(0)
}

// MockUnitOfWork wires the repository mocks into a unit of work
type MockUnitOfWork struct {
	mock.Mock
	UserFundsRepo   *MockUserFundsRepository
	TransactionRepo *MockFundTransactionRepository
	PromoRepo       *MockPromoFundRepository
	Publisher       *MockEventPublisher
}

// NewMockUnitOfWork creates a unit of work backed by fresh repository mocks
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		UserFundsRepo:   &MockUserFundsRepository{},
		TransactionRepo: &MockFundTransactionRepository{},
		PromoRepo:       &MockPromoFundRepository{},
		Publisher:       &MockEventPublisher{},
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserFundsRepository() interfaces.UserFundsRepository {
	return m.UserFundsRepo
}

func (m *MockUnitOfWork) FundTransactionRepository() interfaces.FundTransactionRepository {
	return m.TransactionRepo
}

func (m *MockUnitOfWork) PromoFundRepository() interfaces.PromoFundRepository {
	return m.PromoRepo
}

func (m *MockUnitOfWork) EventBus() interfaces.EventPublisher {
	return m.Publisher
}

// AssertAllExpectations verifies the unit of work and every repository mock
func (m *MockUnitOfWork) AssertAllExpectations(t mock.TestingT) {
	m.AssertExpectations(t)
	m.UserFundsRepo.AssertExpectations(t)
	m.TransactionRepo.AssertExpectations(t)
	m.PromoRepo.AssertExpectations(t)
	m.Publisher.AssertExpectations(t)
}

// SingleUnitOfWorkFactory hands out the same unit of work on every Create
type SingleUnitOfWorkFactory struct {
	UnitOfWork interfaces.UnitOfWork
}

func (f *SingleUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.UnitOfWork
}
