package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "gametrack/internal/lib/logger"
	"gametrack/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

type RabbitMQClient struct {
	log     *slog.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(log *slog.Logger, urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		log:     log,
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQClient) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// StartReading consumes the queue until ctx is cancelled. A delivery is acked once handle
// returns nil and dropped otherwise; nothing is retried.
func (r *RabbitMQClient) StartReading(ctx context.Context, handle func(msg models.Message) error) error {
	const op = "rabbitmq.StartReading"

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := consume(ctx, r.log.With(slog.String("op", op)), deliveries, handle); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func consume(ctx context.Context, log *slog.Logger, deliveries <-chan amqp.Delivery, handle func(msg models.Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			settle(log, d, handle)
		}
	}
}

func settle(log *slog.Logger, d amqp.Delivery, handle func(msg models.Message) error) {
	log = log.With(slog.Uint64("delivery_tag", d.DeliveryTag))

	var msg models.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Error("failed to decode message", sl.Err(err))
		nack(log, d)
		return
	}

	if err := handle(msg); err != nil {
		log.Error("failed to handle message", slog.String("to", msg.Email), sl.Err(err))
		nack(log, d)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", sl.Err(err))
	}
}

func nack(log *slog.Logger, d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		log.Error("failed to nack message", sl.Err(err))
	}
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
