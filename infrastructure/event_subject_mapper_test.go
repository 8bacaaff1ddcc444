package infrastructure

import (
	"testing"

	"fundsledger/domain/events"

	"github.com/stretchr/testify/assert"
)

type unknownEvent struct{}

func (unknownEvent) Type() events.EventType { return "mystery" }

func TestEventSubjectMapper_MapEventToSubject(t *testing.T) {
	t.Parallel()
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event events.Event
		want  string
	}{
		{events.FundsChangedEvent{}, SubjectFundsChanged},
		{events.WithdrawalRequestedEvent{}, SubjectWithdrawalRequested},
		{events.TransactionStatusChangedEvent{}, SubjectTransactionStatusChanged},
		{events.PromoExpiredEvent{}, SubjectPromoExpired},
		{unknownEvent{}, "ledger.unknown.mystery"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Type()), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, mapper.MapEventToSubject(tt.event))
		})
	}
}

func TestEventSubjectMapper_AllSubjectsCovered(t *testing.T) {
	t.Parallel()
	mapper := NewEventSubjectMapper()

	subjects := mapper.GetAllSubjects()
	for _, event := range []events.Event{
		events.FundsChangedEvent{},
		events.WithdrawalRequestedEvent{},
		events.TransactionStatusChangedEvent{},
		events.PromoExpiredEvent{},
	} {
		assert.Contains(t, subjects, mapper.MapEventToSubject(event))
	}
	assert.NotContains(t, subjects, SubjectWithdrawalSettled)
}

func TestConsumerName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "funds-ledger-payments_withdrawal_settled", durableName(SubjectWithdrawalSettled))
	assert.Equal(t, "funds-ledger-ledger_wildcard", durableName("ledger.*"))
}
