// README: RabbitMQ connection and topic exchange setup for ride notifications.
package infra

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ridehail/internal/logger"
)

const dialAttempts = 5

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewRabbitMQ dials url with a short retry loop and declares a durable topic
// exchange for publishing.
func NewRabbitMQ(url, exchange string, log logger.ILogger) (*RabbitMQ, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warning("rabbitmq not ready, retrying", logger.Int("attempt", i), logger.Error(err))
		time.Sleep(time.Duration(i) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQ{Conn: conn, Channel: ch}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.Channel.Close(); err != nil {
		_ = r.Conn.Close()
		return err
	}
	return r.Conn.Close()
}
