// README: RabbitMQ sender publishing persistent JSON to the ride topic exchange.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "ride_topic"

// Publisher is the subset of *amqp.Channel the sender uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPSender struct {
	pub      Publisher
	exchange string
}

func NewAMQPSender(pub Publisher, exchange string) *AMQPSender {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPSender{pub: pub, exchange: exchange}
}

func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	key := RoutingKey(msg)
	if err := s.pub.PublishWithContext(ctx, s.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// RoutingKey maps a message onto the topic layout consumers bind to.
func RoutingKey(msg Message) string {
	switch msg.Kind {
	case KindRideRequest:
		return "ride.request." + string(msg.Class)
	case KindRatingRequest:
		return "ride.rating." + string(msg.Recipient.Role)
	default:
		return "ride.status." + msg.Status
	}
}
