package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hideaki1979/ud-la12react-ec/internal/dedup"
	"github.com/hideaki1979/ud-la12react-ec/internal/fulfillment"
)

// Fulfiller is the slice of the fulfillment service the worker needs.
type Fulfiller interface {
	Fulfill(ctx context.Context, orderID, sessionID string) (fulfillment.Result, error)
}

// StartPaymentTaskConsumer runs the background fulfillment worker. The
// webhook handler acks the provider as soon as the task is queued; this loop
// does the actual work.
func StartPaymentTaskConsumer(ctx context.Context, conn *amqp.Connection, svc Fulfiller, seen dedup.Repository, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		PaymentTaskQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(
		PaymentTaskQueue,
		checkoutServiceName, // consumer tag
		false,               // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Println("stopping payment task consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Println("messages channel closed")
					return
				}

				if err := handlePaymentTask(ctx, svc, seen, msg.Body, logger); err != nil {
					logger.Printf("handle payment task error: %v", err)
					_ = msg.Nack(false, false) // drop, fulfillment is idempotent on redelivery anyway
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return nil
}

func handlePaymentTask(ctx context.Context, svc Fulfiller, seen dedup.Repository, body []byte, logger *log.Logger) error {
	var task PaymentSessionTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("unmarshal payment task: %w", err)
	}
	if task.OrderID == "" {
		return fmt.Errorf("payment task without order id (event %s)", task.EventID)
	}

	if task.EventID != "" {
		dup, err := seen.Seen(ctx, task.EventID)
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if dup {
			logger.Printf("skipping duplicate event %s for order %s", task.EventID, task.OrderID)
			return nil
		}
	}

	res, err := svc.Fulfill(ctx, task.OrderID, task.SessionID)
	if err != nil {
		return fmt.Errorf("fulfill order %s: %w", task.OrderID, err)
	}

	// Record the event only after the order outcome is durable, so a crash
	// in between leads to a harmless retry rather than a lost fulfillment.
	if task.EventID != "" {
		if err := seen.MarkSeen(ctx, task.EventID); err != nil {
			logger.Printf("mark event %s seen: %v", task.EventID, err)
		}
	}

	logger.Printf("processed event %s order %s success=%t alreadyProcessed=%t", task.EventID, task.OrderID, res.Success, res.AlreadyProcessed)
	return nil
}
