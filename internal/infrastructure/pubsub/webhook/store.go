package webhookpubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

// SubscriptionsKey is the datastore key under which subscriptions are
// persisted as a JSON list.
var SubscriptionsKey = []string{"watchdescriptor", "webhooks"}

// store keeps the subscriptions in memory and writes through the datastore
// at every change.
type store struct {
	datastore ports.Datastore
	subs      map[string]Subscription
	lock      *sync.RWMutex
}

func newStore(ctx context.Context, datastore ports.Datastore) (*store, error) {
	s := &store{
		datastore: datastore,
		subs:      make(map[string]Subscription),
		lock:      &sync.RWMutex{},
	}

	entry, err := datastore.Read(ctx, SubscriptionsKey)
	if err != nil {
		if errors.Is(err, ports.ErrDatastoreKeyNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read webhooks: %w", err)
	}

	var subs subscriptions
	if err := json.Unmarshal(entry.Value, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode webhooks: %w", err)
	}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s, nil
}

func (s *store) add(ctx context.Context, sub Subscription) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.subs[sub.ID]; ok {
		return nil
	}

	s.subs[sub.ID] = sub
	if err := s.flush(ctx); err != nil {
		delete(s.subs, sub.ID)
		return err
	}
	return nil
}

func (s *store) remove(ctx context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrSubscriptionNotFound, id)
	}

	delete(s.subs, id)
	if err := s.flush(ctx); err != nil {
		s.subs[id] = sub
		return err
	}
	return nil
}

// getForTopic returns the subscriptions registered exactly for the given
// topic, or all of them for the unspecified one.
func (s *store) getForTopic(topic string) subscriptions {
	s.lock.RLock()
	defer s.lock.RUnlock()

	subs := make(subscriptions, 0)
	for _, sub := range s.subs {
		if topic == ports.UnspecifiedTopic || sub.Event == topic {
			subs = append(subs, sub)
		}
	}
	return subs.sort()
}

func (s *store) flush(ctx context.Context) error {
	subs := make(subscriptions, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	buf, err := json.Marshal(subs.sort())
	if err != nil {
		return err
	}

	if _, err := s.datastore.Write(
		ctx, SubscriptionsKey, buf, ports.DatastoreCreateOrReplace,
	); err != nil {
		return fmt.Errorf("failed to persist webhooks: %w", err)
	}
	return nil
}
