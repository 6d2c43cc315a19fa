// Package bus carries domain events over RabbitMQ. Delivery to subscribers
// is at-least-once; consumers must be idempotent.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arcadehub/users-service/internal/domain/event"
)

// Publisher sends published copies of domain events onto a durable queue.
// The subject travels as the AMQP message type and the correlation id as
// the AMQP correlation id, so the consumer can dispatch without peeking at
// the body.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Publish serializes evt and sends it with subject and correlation metadata.
// Fire-and-forget beyond the transport send: a failure here never rolls
// back an already-committed event store append.
func (p *Publisher) Publish(ctx context.Context, evt event.Event, subject, correlationID string) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", subject, err)
	}
	return p.publishRaw(ctx, body, subject, correlationID)
}

func (p *Publisher) publishRaw(ctx context.Context, body []byte, subject, correlationID string) error {
	err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Type:          subject,
			CorrelationId: correlationID,
			Timestamp:     time.Now().UTC(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}
