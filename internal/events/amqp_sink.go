package events

import (
	"context"
	"fmt"
	"time"

	"lending/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes envelopes to a topic exchange keyed by event type.
type AMQPSink struct {
	channel  Publisher
	exchange string
	conn     *amqp.Connection
}

func NewAMQPSink(channel Publisher, exchange string) *AMQPSink {
	return &AMQPSink{channel: channel, exchange: exchange}
}

// DialAMQP connects, declares a durable topic exchange and returns a sink
// bound to it.
func DialAMQP(url, exchange string, log logrus.FieldLogger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	log.WithField("exchange", exchange).Info("connected to RabbitMQ")
	sink := NewAMQPSink(ch, exchange)
	sink.conn = conn
	return sink, nil
}

func (s *AMQPSink) Handle(ctx context.Context, event domain.Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.channel.PublishWithContext(ctx, s.exchange, event.EventType(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Timestamp:    event.OccurredOn(),
		Type:         event.EventType(),
		Body:         data,
	})
}

func (s *AMQPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
