// Package rabbitmq fans deposit events out to an AMQP topic exchange. The
// event type doubles as the routing key so consumers can bind per transition.
package rabbitmq

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

const (
	defaultExchange = "depositgate.events"
	dialTimeout     = 10 * time.Second
)

type Config struct {
	URL      string
	Exchange string
}

type Publisher struct {
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

var _ portsout.EventPublisher = (*Publisher)(nil)

func NewPublisher(cfg Config) (*Publisher, *apperrors.AppError) {
	cleanURL, err := sanitizeURL(cfg.URL)
	if err != nil {
		return nil, apperrors.NewValidation(
			"broker_url_invalid",
			"broker url is invalid",
			map[string]any{"error": err.Error()},
		)
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, apperrors.NewUnavailable(
			"broker_connect_failed",
			"failed to connect to message broker",
			map[string]any{"error": err.Error()},
		)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperrors.NewUnavailable(
			"broker_channel_failed",
			"failed to open broker channel",
			map[string]any{"error": err.Error()},
		)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, apperrors.NewUnavailable(
			"broker_exchange_declare_failed",
			"failed to declare broker exchange",
			map[string]any{"error": err.Error(), "exchange": exchange},
		)
	}

	return &Publisher{exchange: exchange, conn: conn, channel: channel}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload []byte) *apperrors.AppError {
	if p == nil || p.channel == nil {
		return apperrors.NewInternal(
			"broker_publisher_not_configured",
			"event publisher is not configured",
			nil,
		)
	}
	routingKey := strings.TrimSpace(eventType)
	if routingKey == "" {
		return apperrors.NewValidation(
			"broker_routing_key_missing",
			"event type is required as routing key",
			nil,
		)
	}

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return apperrors.NewUnavailable(
			"broker_publish_failed",
			"failed to publish event to broker",
			map[string]any{"error": err.Error(), "routing_key": routingKey},
		)
	}

	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("scheme must be either amqp:// or amqps://")
	}
	return clean, nil
}
