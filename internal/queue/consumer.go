package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
)

// StartEventConsumer drains the events queue into w, one line per event,
// until ctx is cancelled. Reconcile events are the ones an operator acts
// on; the rest are kept for the audit trail. Broker failures are retried
// with exponential backoff capped at 30s.
func StartEventConsumer(ctx context.Context, cfg config.RabbitMQConfig, w io.Writer, log *zap.Logger) error {
	if cfg.URL == "" {
		return errors.New("rabbitmq url is required")
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg.Queue, w, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("event consumer: loop ended, reconnecting", zap.Error(err))
		time.Sleep(2 * time.Second)
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, w io.Writer, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("event consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleEvent(d.Body, w); err != nil {
				log.Error("event consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleEvent decodes one message body and appends its line to w.
func HandleEvent(body []byte, w io.Writer) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if _, err := io.WriteString(w, FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single log line.
func FormatEvent(ev Event) string {
	at := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case TypeReconcileRequired:
		return fmt.Sprintf("[%s] RECONCILE | op=%s | stripe_id=%s | amount=%d cents | id_usuario=%d | id_lugar=%d | error=%q\n",
			at, ev.Operation, ev.ExternalID, ev.AmountCents, ev.UserID, ev.PlaceID, ev.Error)
	case TypePlaceActivated:
		return fmt.Sprintf("[%s] Lugar activado | id_lugar=%d | id_pago=%d | id_usuario=%d | amount=%d cents | stripe_id=%s\n",
			at, ev.PlaceID, ev.PaymentID, ev.UserID, ev.AmountCents, ev.ExternalID)
	case TypePaymentRefunded:
		return fmt.Sprintf("[%s] Pago reembolsado | id_pago=%d | id_lugar=%d | amount=%d cents | actor=%d | reason=%q\n",
			at, ev.PaymentID, ev.PlaceID, ev.AmountCents, ev.ActorID, ev.Reason)
	}
	return fmt.Sprintf("[%s] %s | id_usuario=%d | id_lugar=%d | actor=%d | reason=%q\n",
		at, ev.Type, ev.UserID, ev.PlaceID, ev.ActorID, ev.Reason)
}
