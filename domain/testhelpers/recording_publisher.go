package testhelpers

import (
	"context"
	"sync"

	"fundsledger/domain/events"
)

// RecordingPublisher keeps every event it receives. Pass it as the shared
// publisher behind a transactional one to observe what reached the bus.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of what was published so far
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// OfType returns the published events of one type
func (p *RecordingPublisher) OfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range p.Events() {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets everything recorded
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// BufferedPublisher is a minimal transactional publisher that forwards to a
// target on Flush and drops on Discard.
type BufferedPublisher struct {
	mu      sync.Mutex
	target  interface{ Publish(events.Event) error }
	pending []events.Event
}

// NewBufferedPublisher creates a transactional publisher in front of target
func NewBufferedPublisher(target interface{ Publish(events.Event) error }) *BufferedPublisher {
	return &BufferedPublisher{target: target}
}

func (p *BufferedPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *BufferedPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, e := range pending {
		if err := p.target.Publish(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *BufferedPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}
