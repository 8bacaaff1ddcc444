package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	natsClientName = "funds-ledger"

	// settlement outcomes are retried a bounded number of times, then terminated
	consumerMaxDeliver = 5
	consumerAckWait    = 30 * time.Second
	redeliveryBackoff  = 2 * time.Second
)

var errNotConnected = errors.New("not connected to NATS JetStream")

// StreamSpec describes a JetStream stream the ledger publishes to or consumes from
type StreamSpec struct {
	Name        string
	Subjects    []string
	Description string
	MaxAge      time.Duration
}

// LedgerStreams returns the outbound ledger event stream and the inbound
// payment settlement stream.
func LedgerStreams(mapper *EventSubjectMapper) []StreamSpec {
	return []StreamSpec{
		{
			Name:        LedgerEventStream,
			Subjects:    mapper.GetAllSubjects(),
			Description: "Funds ledger domain events",
			MaxAge:      30 * 24 * time.Hour,
		},
		{
			Name:        PaymentEventStream,
			Subjects:    []string{SubjectWithdrawalSettled},
			Description: "Payment rail settlement outcomes",
			MaxAge:      7 * 24 * time.Hour,
		},
	}
}

// NATSClient is a JetStream-backed MessagePublisher and MessageSubscriber
type NATSClient struct {
	servers string

	mu            sync.RWMutex
	nc            *nats.Conn
	js            nats.JetStreamContext
	subscriptions map[string]*nats.Subscription
}

// NewNATSClient creates a new NATS client
func NewNATSClient(servers string) *NATSClient {
	return &NATSClient{
		servers:       servers,
		subscriptions: make(map[string]*nats.Subscription),
	}
}

// Connect dials the servers and opens a JetStream context
func (c *NATSClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := nats.Connect(c.servers,
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected, ledger events will queue until reconnect")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := log.Fields{"error": err}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			log.WithFields(fields).Error("NATS async error")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc, c.js = nc, js
	c.mu.Unlock()

	log.WithField("servers", c.servers).Info("Connected to NATS with JetStream")
	return nil
}

func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errNotConnected
	}
	return c.js, nil
}

// EnsureStreams creates every missing stream. Existing streams are left as configured.
func (c *NATSClient) EnsureStreams(specs ...StreamSpec) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if _, err := js.StreamInfo(spec.Name); err == nil {
			log.WithField("stream", spec.Name).Debug("JetStream stream already exists")
			continue
		} else if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to look up stream %s: %w", spec.Name, err)
		}

		if _, err := js.AddStream(&nats.StreamConfig{
			Name:        spec.Name,
			Subjects:    spec.Subjects,
			Description: spec.Description,
			Retention:   nats.LimitsPolicy,
			MaxAge:      spec.MaxAge,
			Storage:     nats.FileStorage,
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", spec.Name, err)
		}
		log.WithFields(log.Fields{
			"stream":   spec.Name,
			"subjects": spec.Subjects,
		}).Info("Created JetStream stream")
	}
	return nil
}

// durableName derives a durable consumer name from a subject
func durableName(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "rest")
	return natsClientName + "-" + r.Replace(subject)
}

// Subscribe registers a durable consumer with explicit acknowledgment
func (c *NATSClient) Subscribe(subject string, handler func([]byte) error) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	sub, err := js.Subscribe(subject,
		func(msg *nats.Msg) { deliver(subject, msg.Data, msg, handler) },
		nats.Durable(durableName(subject)),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(consumerMaxDeliver),
		nats.AckWait(consumerAckWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subscriptions[subject] = sub
	c.mu.Unlock()

	log.WithField("subject", subject).Info("Subscribed to NATS subject")
	return nil
}

// deliverable is the part of *nats.Msg that delivery needs
type deliverable interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
	Metadata() (*nats.MsgMetadata, error)
}

// deliver acks handled messages. Failed messages are redelivered with a delay
// that grows per attempt; the final attempt is terminated instead.
func deliver(subject string, data []byte, msg deliverable, handler func([]byte) error) {
	handleErr := handler(data)
	if handleErr == nil {
		if err := msg.Ack(); err != nil {
			log.WithError(err).WithField("subject", subject).Error("Failed to ACK message")
		}
		return
	}

	attempt := uint64(1)
	if meta, err := msg.Metadata(); err == nil {
		attempt = meta.NumDelivered
	}
	logger := log.WithFields(log.Fields{
		"subject": subject,
		"attempt": attempt,
		"error":   handleErr,
	})

	if attempt >= consumerMaxDeliver {
		logger.Error("Giving up on message after final delivery attempt")
		if err := msg.Term(); err != nil {
			logger.WithError(err).Error("Failed to TERM message")
		}
		return
	}

	logger.Warn("Failed to process message, requesting redelivery")
	if err := msg.NakWithDelay(time.Duration(attempt) * redeliveryBackoff); err != nil {
		logger.WithError(err).Error("Failed to NAK message")
	}
}

// Publish publishes a message to the specified subject using JetStream
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	if _, err := js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject": subject,
		"size":    len(data),
	}).Debug("Published message to NATS")
	return nil
}

// IsConnected returns true if the client is connected to NATS
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

// Close unsubscribes every consumer and closes the connection
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			log.WithError(err).WithField("subject", subject).Error("Failed to unsubscribe")
		}
	}
	c.subscriptions = make(map[string]*nats.Subscription)

	if c.nc != nil {
		c.nc.Close()
		c.nc, c.js = nil, nil
		log.Info("NATS connection closed")
	}
	return nil
}
