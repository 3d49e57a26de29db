package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"documind/internal/model"
)

// ReplyPublisher enqueues assistant replies for durable persistence after
// the stream to the client has finished. Publishing opens its own channel,
// so it works even after the originating request's resources are gone.
type ReplyPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewReplyPublisher(conn *amqp.Connection, queueName string) *ReplyPublisher {
	return &ReplyPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ReplyPublisher) Publish(ctx context.Context, msg model.Message) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(p.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reply payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish reply failed: %w", err)
	}
	return nil
}
