package pubsub

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/tdex-network/watchdescriptor/internal/core/application"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

var (
	// ErrInvalidTopic is returned when subscribing to a topic never
	// published by the daemon.
	ErrInvalidTopic = errors.New("topic is invalid")
	// ErrWebhookNotFound is returned when removing an unknown webhook.
	ErrWebhookNotFound = errors.New("webhook not found")
	// ErrInvalidEndpoint is returned when the webhook endpoint is not an
	// absolute URL.
	ErrInvalidEndpoint = errors.New("webhook endpoint must be a valid URL")
)

// Service manages the webhooks notified about coin movements.
type Service struct {
	pubsub ports.WebhookPubSub
}

func NewService(pubsub ports.WebhookPubSub) *Service {
	return &Service{pubsub}
}

func (s *Service) Publisher() ports.Publisher {
	return s.pubsub
}

func (s *Service) AddWebhook(
	_ context.Context, topic, endpoint, secret string,
) (string, error) {
	if !isValidTopic(topic) {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	if u, err := url.ParseRequestURI(endpoint); err != nil || len(u.Host) <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidEndpoint, endpoint)
	}
	return s.pubsub.Subscribe(topic, endpoint, secret)
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	if err := s.pubsub.Unsubscribe(id); err != nil {
		if errors.Is(err, ports.ErrSubscriptionNotFound) {
			return fmt.Errorf("%w: %s", ErrWebhookNotFound, id)
		}
		return err
	}
	return nil
}

// ListWebhooks returns the webhooks notified for the given topic, those
// subscribed to any topic included. All webhooks are returned if the topic
// is unspecified.
func (s *Service) ListWebhooks(
	_ context.Context, topic string,
) ([]WebhookInfo, error) {
	if topic != ports.UnspecifiedTopic && !isValidTopic(topic) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	subs, err := s.pubsub.ListSubscriptionsForTopic(topic)
	if err != nil {
		return nil, err
	}
	webhooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		webhooks = append(webhooks, newWebhookInfo(sub))
	}
	return webhooks, nil
}

func isValidTopic(topic string) bool {
	if topic == ports.AnyTopic {
		return true
	}
	for _, t := range application.Topics() {
		if t == topic {
			return true
		}
	}
	return false
}
