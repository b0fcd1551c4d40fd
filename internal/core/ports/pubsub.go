package ports

import "errors"

// ErrSubscriptionNotFound is returned when removing an unknown subscription.
var ErrSubscriptionNotFound = errors.New("subscription not found")

const AnyTopic = "*"
const UnspecifiedTopic = ""

// Publisher delivers a message to the host for a certain topic.
type Publisher interface {
	Publish(topic string, message string) error
}

type Subscription interface {
	Topic() string
	Id() string
	IsSecured() bool
	NotifyAt() string
}

// WebhookPubSub defines the methods of a publisher notifying a set of
// subscribed HTTP endpoints.
type WebhookPubSub interface {
	Publisher
	// Subscribe adds a new subscription for the requested topic.
	Subscribe(topic, endpoint, secret string) (string, error)
	// Unsubscribe removes the subscription with the given id.
	Unsubscribe(id string) error
	// ListSubscriptionsForTopic returns the info of all clients subscribed for
	// a certain topic. All subscriptions are returned for UnspecifiedTopic.
	ListSubscriptionsForTopic(topic string) ([]Subscription, error)
}
