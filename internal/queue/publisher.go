package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
)

// Publisher sends events to a durable queue. A Publisher with an empty URL
// drops every event, so development setups run without a broker.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewPublisher(cfg config.RabbitMQConfig, log *zap.Logger) *Publisher {
	return &Publisher{url: cfg.URL, queue: cfg.Queue, log: log}
}

// Publish delivers ev as a persistent JSON message. Callers treat it as
// best effort: the error is logged here and returned, and a failed publish
// never undoes the operation that produced the event.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.url == "" {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	err := p.publish(ctx, ev)
	if err != nil {
		p.log.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
}
