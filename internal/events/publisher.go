package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hideaki1979/ud-la12react-ec/internal/sequence"
)

type Publisher struct {
	ch  *amqp.Channel
	seq sequence.Repository
}

func NewPublisher(conn *amqp.Connection, seq sequence.Repository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare queues so publish never fails due to missing infra
	for _, q := range []string{PaymentTaskQueue, NotificationQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch, seq: seq}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// EnqueuePaymentTask hands a verified webhook event to the background worker.
func (p *Publisher) EnqueuePaymentTask(ctx context.Context, task PaymentSessionTask) error {
	if task.ReceivedAt.IsZero() {
		task.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal payment task: %w", err)
	}
	return p.publishJSON(ctx, PaymentTaskQueue, body)
}

// PublishEmailRequest emits an enveloped, sequenced mail request keyed by
// order so the mailer can spot gaps and duplicates.
func (p *Publisher) PublishEmailRequest(ctx context.Context, req EmailRequest) error {
	seq, err := p.seq.NextSequence(ctx, req.OrderID)
	if err != nil {
		return fmt.Errorf("sequence for order %s: %w", req.OrderID, err)
	}

	env := EventEnvelope[EmailRequest]{
		EventName:    EmailRequestedEventName,
		EventVersion: EmailRequestedEventVersion,
		EventID:      uuid.NewString(),
		Producer:     checkoutServiceName,
		PartitionKey: req.OrderID,
		Sequence:     &seq,
		OccurredAt:   time.Now().UTC(),
		Payload:      req,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}
	return p.publishJSON(ctx, NotificationQueue, body)
}

func (p *Publisher) publishJSON(ctx context.Context, queue string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",    // default exchange
		queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
