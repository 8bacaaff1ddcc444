package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MessageHandler defines a function that handles raw message bytes
type MessageHandler func(ctx context.Context, data []byte) error

// MessageConsumer routes messages from a MessageSubscriber to registered handlers
type MessageConsumer struct {
	subscriber MessageSubscriber
	handlers   map[string]MessageHandler
	mu         sync.RWMutex

	// OnReceived is called with the subject of every delivered message
	OnReceived func(subject string)
}

// NewMessageConsumer creates a new message consumer
func NewMessageConsumer(subscriber MessageSubscriber) *MessageConsumer {
	return &MessageConsumer{
		subscriber: subscriber,
		handlers:   make(map[string]MessageHandler),
	}
}

// RegisterHandler registers a handler for a specific subject
func (mc *MessageConsumer) RegisterHandler(subject string, handler MessageHandler) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.handlers[subject] = handler
	log.WithField("subject", subject).Info("Registered message handler")
}

// Start subscribes every registered subject. Message handling is bound to ctx.
func (mc *MessageConsumer) Start(ctx context.Context) error {
	mc.mu.RLock()
	subjects := make([]string, 0, len(mc.handlers))
	for subject := range mc.handlers {
		subjects = append(subjects, subject)
	}
	mc.mu.RUnlock()
	sort.Strings(subjects)

	for _, subject := range subjects {
		if err := mc.subscribe(ctx, subject); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	log.WithField("subjects", subjects).Info("Message consumer started and subscribed to subjects")
	return nil
}

func (mc *MessageConsumer) subscribe(ctx context.Context, subject string) error {
	return mc.subscriber.Subscribe(subject, func(data []byte) error {
		return mc.dispatch(ctx, subject, data)
	})
}

// dispatch runs the handler registered for subject
func (mc *MessageConsumer) dispatch(ctx context.Context, subject string, data []byte) error {
	mc.mu.RLock()
	handler, exists := mc.handlers[subject]
	mc.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for subject: %s", subject)
	}
	if mc.OnReceived != nil {
		mc.OnReceived(subject)
	}

	if err := handler(ctx, data); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to handle message")
		return err
	}
	return nil
}
