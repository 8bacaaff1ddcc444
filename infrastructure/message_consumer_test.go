package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fundsledger/application/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber keeps the handler registered for each subject so tests can deliver messages
type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]func([]byte) error
	err      error
}

func (s *fakeSubscriber) Subscribe(subject string, handler func([]byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.handlers == nil {
		s.handlers = make(map[string]func([]byte) error)
	}
	s.handlers[subject] = handler
	return nil
}

func (s *fakeSubscriber) deliver(t *testing.T, subject string, data []byte) error {
	t.Helper()
	s.mu.Lock()
	handler, ok := s.handlers[subject]
	s.mu.Unlock()
	require.True(t, ok, "no subscription for %s", subject)
	return handler(data)
}

type mockSettlementHandler struct {
	mock.Mock
}

func (m *mockSettlementHandler) HandleWithdrawalSettled(ctx context.Context, settled dto.WithdrawalSettledDTO) error {
	return m.Called(ctx, settled).Error(0)
}

func TestMessageConsumer_DispatchesToRegisteredHandler(t *testing.T) {
	t.Parallel()

	subscriber := &fakeSubscriber{}
	consumer := NewMessageConsumer(subscriber)

	var received []string
	consumer.OnReceived = func(subject string) { received = append(received, subject) }

	var payloads [][]byte
	consumer.RegisterHandler("payments.test", func(ctx context.Context, data []byte) error {
		payloads = append(payloads, data)
		return nil
	})
	consumer.RegisterHandler("payments.broken", func(ctx context.Context, data []byte) error {
		return errors.New("handler failed")
	})

	require.NoError(t, consumer.Start(context.Background()))

	require.NoError(t, subscriber.deliver(t, "payments.test", []byte("hello")))
	assert.Error(t, subscriber.deliver(t, "payments.broken", []byte("boom")))

	assert.Equal(t, [][]byte{[]byte("hello")}, payloads)
	assert.Equal(t, []string{"payments.test", "payments.broken"}, received)
}

func TestMessageConsumer_StartSurfacesSubscribeErrors(t *testing.T) {
	t.Parallel()

	consumer := NewMessageConsumer(&fakeSubscriber{err: errors.New("not connected")})
	consumer.RegisterHandler(SubjectWithdrawalSettled, func(ctx context.Context, data []byte) error { return nil })

	err := consumer.Start(context.Background())
	assert.ErrorContains(t, err, SubjectWithdrawalSettled)
}

func TestPaymentEventListener_HandleWithdrawalSettled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		expect  *dto.WithdrawalSettledDTO
		handErr error
		wantErr bool
	}{
		{
			name:    "decodes and forwards",
			payload: `{"transactionId":"tx-1","outcome":"failed","reason":"bank rejected"}`,
			expect:  &dto.WithdrawalSettledDTO{TransactionID: "tx-1", Outcome: dto.SettlementOutcomeFailed, Reason: "bank rejected"},
		},
		{
			name:    "handler errors request redelivery",
			payload: `{"transactionId":"tx-1","outcome":"completed"}`,
			expect:  &dto.WithdrawalSettledDTO{TransactionID: "tx-1", Outcome: dto.SettlementOutcomeCompleted},
			handErr: errors.New("database unavailable"),
			wantErr: true,
		},
		{
			name:    "malformed payload is dropped",
			payload: `{"transactionId":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := new(mockSettlementHandler)
			if tt.expect != nil {
				handler.On("HandleWithdrawalSettled", mock.Anything, *tt.expect).Return(tt.handErr)
			}

			subscriber := &fakeSubscriber{}
			consumer := NewMessageConsumer(subscriber)
			RegisterPaymentSubscriptions(consumer, handler)
			require.NoError(t, consumer.Start(context.Background()))

			err := subscriber.deliver(t, SubjectWithdrawalSettled, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			handler.AssertExpectations(t)
			if tt.expect == nil {
				handler.AssertNotCalled(t, "HandleWithdrawalSettled", mock.Anything, mock.Anything)
			}
		})
	}
}
