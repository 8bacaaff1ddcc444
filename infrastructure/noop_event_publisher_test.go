package infrastructure

import (
	"testing"

	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"

	"github.com/stretchr/testify/assert"
)

func TestNoopEventPublisher_CountsDroppedEvents(t *testing.T) {
	t.Parallel()

	var publisher interfaces.EventPublisher = NewNoopEventPublisher()
	assert.NoError(t, publisher.Publish(events.PromoExpiredEvent{UserID: "u1", PromoID: "p1"}))
	assert.NoError(t, publisher.Publish(events.WithdrawalRequestedEvent{UserID: "u1", TransactionID: "t1"}))

	assert.Equal(t, int64(2), publisher.(*NoopEventPublisher).Dropped())
}
