// Package publisher hands articles received over POST to the web
// application through a RabbitMQ exchange.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/epilys/sic-sub000/forum"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ is a forum.Receiver.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
}

var _ forum.Receiver = (*RabbitMQ)(nil)

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	// QueueName, when set, is declared and bound to the exchange so
	// postings are kept until the web application consumes them.
	QueueName string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	if cfg.QueueName != "" {
		q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, errors.Wrap(err, "declare queue")
		}
		if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, errors.Wrap(err, "bind queue")
		}
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// PostingMessage is the body of a published message.
type PostingMessage struct {
	Action    string        `json:"action"`
	Posting   forum.Posting `json:"posting"`
	Timestamp time.Time     `json:"timestamp"`
}

func newPublishing(p *forum.Posting, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(PostingMessage{
		Action:    "post",
		Posting:   *p,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "marshal message")
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    p.MessageID,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// Receive publishes p.
func (r *RabbitMQ) Receive(ctx context.Context, p *forum.Posting) error {
	msg, err := newPublishing(p, r.now())
	if err != nil {
		return err
	}
	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg)
	if err != nil {
		return errors.Wrap(err, "publish message")
	}

	r.logger.Debug("published posting",
		"message_id", p.MessageID,
		"user", p.User.Username,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
