package infrastructure

import (
	"sync/atomic"

	"fundsledger/domain/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher keeps ledger events inside the process when NATS is
// disabled. Events are counted and logged at debug level, then dropped.
type NoopEventPublisher struct {
	dropped atomic.Int64
}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish drops the event
func (n *NoopEventPublisher) Publish(event events.Event) error {
	n.dropped.Add(1)
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithField("event_type", event.Type()).Debug("Dropping ledger event, NATS disabled")
	}
	return nil
}

// Dropped returns how many events were discarded
func (n *NoopEventPublisher) Dropped() int64 {
	return n.dropped.Load()
}
