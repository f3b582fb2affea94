// README: Firebase Cloud Messaging sender. Each user subscribes their devices to topic user_<id>.
package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// MessagingClient is the subset of *messaging.Client the sender uses.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMSender struct {
	client MessagingClient
}

func NewFCMSender(client MessagingClient) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, msg Message) error {
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["type"] = string(msg.Kind)

	priority := "normal"
	if msg.Kind == KindRideRequest {
		priority = "high"
	}
	if _, err := s.client.Send(ctx, &messaging.Message{
		Topic: Topic(msg.Recipient),
		Data:  data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{Priority: priority},
	}); err != nil {
		return fmt.Errorf("fcm send to %s: %w", msg.Recipient.UserID, err)
	}
	return nil
}

func Topic(to Recipient) string {
	return "user_" + string(to.UserID)
}
