package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// ErrProducerClosed is returned after Close.
var ErrProducerClosed = errors.New("producer closed")

// Publisher is the publishing side of a Connection.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, msg *Message) error
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Buffer         int           // Pending events held before dropping
	PublishTimeout time.Duration // Per-message publish timeout
}

// DefaultProducerConfig returns sensible defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Buffer:         256,
		PublishTimeout: 5 * time.Second,
	}
}

// Producer forwards domain events to RabbitMQ. Events are queued in memory
// and published by a single goroutine so dispatching never blocks on the
// broker.
type Producer struct {
	pub     Publisher
	timeout time.Duration
	pending chan *Message

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewProducer creates a new queue producer and starts its publish loop
func NewProducer(pub Publisher, cfg ProducerConfig) *Producer {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	p := &Producer{
		pub:     pub,
		timeout: cfg.PublishTimeout,
		pending: make(chan *Message, cfg.Buffer),
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Handle is a domain.EventHandler. It never blocks: when the buffer is full
// the event is dropped and counted.
func (p *Producer) Handle(event domain.Event) {
	msg, err := NewMessage(event)
	if err != nil {
		slog.Error("failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	if err := p.Enqueue(msg); err != nil {
		slog.Warn("event not published", "type", msg.Type, "id", msg.ID, "error", err)
	}
}

// Enqueue schedules msg for publishing.
func (p *Producer) Enqueue(msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.pending <- msg:
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("event buffer full (%d)", cap(p.pending))
	}
}

// Publish sends msg to every queue it routes to, synchronously.
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	var errs []error
	for _, queue := range RoutesTo(msg.Type) {
		if err := p.pub.PublishJSON(ctx, queue, msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %s to %s: %w", msg.Type, queue, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Debug("published event",
		"id", msg.ID,
		"type", msg.Type,
		"user_id", msg.UserID,
	)
	return nil
}

func (p *Producer) loop() {
	defer p.wg.Done()
	for msg := range p.pending {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.Publish(ctx, msg); err != nil {
			slog.Error("event publish failed", "id", msg.ID, "type", msg.Type, "error", err)
		}
		cancel()
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (p *Producer) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be published.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.pending)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
