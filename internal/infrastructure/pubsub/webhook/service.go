package webhookpubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	"github.com/tdex-network/watchdescriptor/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const DefaultRequestTimeout = 15 * time.Second

type service struct {
	store      *store
	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a webhook publisher whose subscriptions are persisted
// in the given datastore. A non positive timeout falls back to the default
// one.
func NewService(
	datastore ports.Datastore, requestTimeout time.Duration,
) (ports.WebhookPubSub, error) {
	if datastore == nil {
		return nil, ErrNullDatastore
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	s, err := newStore(context.Background(), datastore)
	if err != nil {
		return nil, err
	}

	return &service{
		store:      s,
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhook"),
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	if err := ws.store.add(context.Background(), *sub); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"id":       sub.ID,
		"topic":    sub.Event,
		"endpoint": sub.Endpoint,
	}).Debug("added webhook subscription")
	return sub.ID, nil
}

func (ws *service) Unsubscribe(id string) error {
	if err := ws.store.remove(context.Background(), id); err != nil {
		return err
	}

	log.WithField("id", id).Debug("removed webhook subscription")
	return nil
}

func (ws *service) ListSubscriptionsForTopic(topic string) ([]ports.Subscription, error) {
	return ws.listSubscriptionsForTopic(topic).toPortable(), nil
}

func (ws *service) Publish(topic string, message string) error {
	return ws.publishForTopic(topic, message)
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	subs := ws.store.getForTopic(topic)
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subsForAnyTopic := ws.store.getForTopic(ports.AnyTopic)
		subs = append(subs, subsForAnyTopic...)
	}
	return subs
}

func (ws *service) publishForTopic(topic, message string) error {
	subs := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return ws.doRequest(sub, message) })
	}
	return eg.Wait()
}

func (ws *service) doRequest(sub Subscription, payload string) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		token := ""
		if sub.IsSecured() {
			jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
				IssuedAt: time.Now().Unix(),
				Subject:  sub.Event,
			})
			signed, err := jwtToken.SignedString([]byte(sub.Secret))
			if err != nil {
				return nil, err
			}
			token = signed
		}

		if err := ws.httpClient.deliver(sub.Endpoint, payload, token); err != nil {
			return nil, fmt.Errorf("webhook %s: %w", sub.ID, err)
		}
		return nil, nil
	})

	return err
}
