package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Queue names
const (
	EventQueueName = "storefront.events"
	OrderQueueName = "storefront.orders"
)

// Message is the envelope published for every storefront event.
type Message struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	UserID     string          `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewMessage wraps a domain event.
func NewMessage(event domain.Event) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &Message{
		ID:         event.EventID(),
		Type:       event.EventType(),
		UserID:     event.UserID(),
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// RoutesTo returns the queues a message of this type is delivered to.
func RoutesTo(eventType string) []string {
	switch eventType {
	case domain.EventCheckoutStarted, domain.EventCheckoutCompleted:
		return []string{EventQueueName, OrderQueueName}
	default:
		return []string{EventQueueName}
	}
}

// ReconnectPolicy bounds reconnection attempts.
type ReconnectPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultReconnectPolicy returns sensible defaults
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Attempts: 10,
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
	}
}

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	policy     ReconnectPolicy
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection creates a new RabbitMQ connection
func NewConnection(url string) (*Connection, error) {
	return NewConnectionWithPolicy(url, DefaultReconnectPolicy())
}

// NewConnectionWithPolicy creates a connection that reconnects per policy
func NewConnectionWithPolicy(url string, policy ReconnectPolicy) (*Connection, error) {
	c := &Connection{
		url:    url,
		policy: policy,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes connection and channel
func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueues(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = ch

	go c.handleReconnect(conn)

	slog.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

// declareQueues creates the necessary queues
func declareQueues(ch *amqp.Channel) error {
	// Event stream - informational, expires after a day
	_, err := ch.QueueDeclare(
		EventQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(86400000),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare event queue: %w", err)
	}

	// Orders - consumed by fulfilment, no TTL
	_, err = ch.QueueDeclare(
		OrderQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare order queue: %w", err)
	}

	return nil
}

// handleReconnect waits for conn to close and reconnects with backoff
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return // Normal close
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	slog.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects,
	)

	rerr := retry.Do(
		func() error {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if closed {
				return retry.Unrecoverable(fmt.Errorf("connection closed"))
			}
			return c.connect()
		},
		retry.Attempts(c.policy.Attempts),
		retry.Delay(c.policy.Delay),
		retry.MaxDelay(c.policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.mu.Lock()
			c.reconnects++
			c.mu.Unlock()
			slog.Error("reconnection failed", "error", err, "attempt", n+1)
		}),
	)
	if rerr != nil {
		slog.Error("failed to reconnect to RabbitMQ", "attempts", c.policy.Attempts, "error", rerr)
		return
	}
	slog.Info("reconnected to RabbitMQ")
}

// Channel returns the current channel (thread-safe)
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes a JSON message to a queue
func (c *Connection) PublishJSON(ctx context.Context, queue string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID.String(),
			Type:         msg.Type,
			Timestamp:    msg.OccurredAt,
			Body:         body,
		},
	)
}

// sanitizeURL removes credentials from an AMQP URL for logging
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:20] + "..."
		}
		return raw
	}
	u.User = nil
	return u.String()
}
