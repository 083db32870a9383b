package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/queue"
)

// cmdEvents tails storefront events from RabbitMQ until interrupted
func cmdEvents(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.RabbitMQURL == "" {
		return fmt.Errorf("no broker configured (set %s)", config.EnvRabbitMQURL)
	}

	queueName := queue.EventQueueName
	if len(args) > 0 {
		switch args[0] {
		case "orders":
			queueName = queue.OrderQueueName
		case "all", "events":
		default:
			queueName = args[0]
		}
	}

	conn, err := queue.NewConnection(cfg.Events.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	consumer := queue.NewConsumer(conn, printEvent, queue.ConsumerConfig{
		Queue:   queueName,
		Workers: 1,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Tailing %s (Ctrl+C to stop)\n", queueName)

	<-ctx.Done()
	consumer.Stop()
	return nil
}

func printEvent(_ context.Context, msg *queue.Message) error {
	user := msg.UserID
	if user == "" {
		user = "-"
	}
	fmt.Printf("%s  %-22s %-12s %s\n",
		msg.OccurredAt.Local().Format("15:04:05"), msg.Type, user, string(msg.Payload))
	return nil
}
