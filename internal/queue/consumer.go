package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one event message. Returning an error requeues it.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer consumes event messages from a queue
type Consumer struct {
	conn       *Connection
	queue      string
	handler    MessageHandler
	workers    int
	prefetch   int
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Queue    string // Queue to consume (default: EventQueueName)
	Workers  int    // Number of concurrent workers
	Prefetch int    // Prefetch count per worker
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Queue:    EventQueueName,
		Workers:  1,
		Prefetch: 10,
	}
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.Queue == "" {
		cfg.Queue = EventQueueName
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	return cfg
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler MessageHandler, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting event consumer", "queue", c.queue, "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case d, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}
			c.process(ctx, id, d)
		}
	}
}

// acknowledger is the subset of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery) {
	c.handle(ctx, workerID, d.Body, &d)
}

// handle decodes body, runs the handler and settles the delivery.
func (c *Consumer) handle(ctx context.Context, workerID int, body []byte, ack acknowledger) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		slog.Error("failed to unmarshal message",
			"worker_id", workerID,
			"queue", c.queue,
			"error", err,
		)
		// Reject without requeue for malformed messages
		_ = ack.Reject(false)
		return
	}

	if err := c.handler(ctx, &msg); err != nil {
		slog.Error("message handling failed",
			"worker_id", workerID,
			"id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		_ = ack.Nack(false, true)
		return
	}

	if err := ack.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"id", msg.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped", "queue", c.queue)
}
