//go:build integration

package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Producer_RoutesCheckoutEvents(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := queue.NewProducer(conn, queue.DefaultProducerConfig())
	items := []domain.LineItem{{ProductID: "p1", ProductName: "Strat", Price: 100, Quantity: 2}}
	producer.Handle(domain.NewCheckoutCompletedEvent("u1", "sale-1", items))
	producer.Handle(domain.NewCeilingExceededEvent("u1", "p1", 6))

	if err := producer.Close(); err != nil {
		t.Fatalf("failed to close producer: %v", err)
	}

	ch := conn.Channel()
	events, err := ch.QueueInspect(queue.EventQueueName)
	if err != nil {
		t.Fatalf("failed to inspect event queue: %v", err)
	}
	if events.Messages != 2 {
		t.Errorf("expected 2 messages in event queue, got %d", events.Messages)
	}

	orders, err := ch.QueueInspect(queue.OrderQueueName)
	if err != nil {
		t.Fatalf("failed to inspect order queue: %v", err)
	}
	if orders.Messages != 1 {
		t.Errorf("expected 1 message in order queue, got %d", orders.Messages)
	}
}

func TestIntegration_Consumer_ReceivesOrders(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var mu sync.Mutex
	var received []domain.CheckoutCompletedEvent
	receivedCh := make(chan struct{}, 5)

	handler := func(ctx context.Context, msg *queue.Message) error {
		var event domain.CheckoutCompletedEvent
		if err := msg.Decode(&event); err != nil {
			return err
		}
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		receivedCh <- struct{}{}
		return nil
	}

	consumer := queue.NewConsumer(conn, handler, queue.ConsumerConfig{
		Queue:    queue.OrderQueueName,
		Workers:  2,
		Prefetch: 1,
	})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	producer := queue.NewProducer(conn, queue.DefaultProducerConfig())
	defer producer.Close()

	const count = 3
	for i := 0; i < count; i++ {
		items := []domain.LineItem{{ProductID: "p1", ProductName: "Strat", Price: 100, Quantity: i + 1}}
		msg, err := queue.NewMessage(domain.NewCheckoutCompletedEvent("u1", "sale", items))
		if err != nil {
			t.Fatalf("failed to build message: %v", err)
		}
		if err := producer.Publish(ctx, msg); err != nil {
			t.Fatalf("failed to publish message %d: %v", i, err)
		}
	}

	for i := 0; i < count; i++ {
		select {
		case <-receivedCh:
		case <-ctx.Done():
			t.Fatalf("timeout waiting for message %d", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != count {
		t.Errorf("expected %d orders, got %d", count, len(received))
	}
	for _, event := range received {
		if event.SaleID != "sale" || len(event.Items) != 1 {
			t.Errorf("unexpected order event %+v", event)
		}
	}
}
