// Package messaging publishes workflow events to a RabbitMQ topic exchange.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"formintake/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(eventType string, payload []byte) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logger.Logger
}

// Dial connects and declares the exchange as a durable topic exchange.
func Dial(url, exchange string, log *logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		log.Error("error opening channel", zap.Error(err))
		conn.Close()
		return nil, err
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange, logger: log}, nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Error("error closing channel", zap.Error(err))
	}
	return p.conn.Close()
}

func (p *Publisher) IsHealthy() bool {
	return !p.conn.IsClosed()
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encode payload: %w", err)
	}

	event := NewEvent(routingKey, body)
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encode event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Body:         eventJSON,
			Timestamp:    event.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("error publishing event: %w", err)
	}

	p.logger.Debug("published event",
		zap.String("event_id", event.ID),
		zap.String("routing_key", routingKey))
	return nil
}
