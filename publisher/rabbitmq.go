// Package publisher delivers posts to an AMQP exchange for consumers that
// fan them out further.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/models"
)

// PostMessage is the JSON body of each published message.
type PostMessage struct {
	Post      models.PostRecord `json:"post"`
	Timestamp time.Time         `json:"timestamp"`
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	returns    chan amqp.Return
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// NewRabbitMQ dials cfg.URL, declares a durable direct exchange and puts the
// channel in confirm mode. Queue topology belongs to consumers.
func NewRabbitMQ(cfg config.AMQPConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
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
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	logger.Debug("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		returns:    returns,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// Deliver publishes rec as one persistent, mandatory message and waits for
// the broker's confirm. A nack, an unroutable return or a failed wait is a
// DELIVERY_FAILED RunError.
func (r *RabbitMQ) Deliver(ctx context.Context, rec *models.PostRecord) error {
	body, err := json.Marshal(PostMessage{
		Post:      *rec,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return models.NewRunError(models.ErrCodeDelivery, "failed to encode message", err)
	}

	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		true,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    rec.CanonicalURL,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return models.NewRunError(models.ErrCodeDelivery, "failed to publish message", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return models.NewRunError(models.ErrCodeDelivery, "no publish confirm from broker", err)
	}
	if !acked {
		return models.NewRunError(models.ErrCodeDelivery, "broker rejected message", nil)
	}

	// The broker sends basic.return before the ack, so a return for this
	// message is already buffered by now.
	select {
	case ret := <-r.returns:
		return models.NewRunError(
			models.ErrCodeDelivery,
			fmt.Sprintf("message unroutable: %d %s", ret.ReplyCode, ret.ReplyText),
			nil,
		)
	default:
	}

	r.logger.Info("post published",
		"handle", rec.Handle,
		"url", rec.CanonicalURL,
		"exchange", r.exchange,
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
