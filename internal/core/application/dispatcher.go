package application

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	"github.com/tdex-network/watchdescriptor/pkg/stats"
)

// Dispatcher hands coin movements over to the publishers without blocking
// the caller. Every movement is delivered in its own goroutine and failures
// are only logged.
type Dispatcher struct {
	publishers []ports.Publisher
	wg         *sync.WaitGroup
}

func NewDispatcher(publishers ...ports.Publisher) *Dispatcher {
	pubs := make([]ports.Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			pubs = append(pubs, p)
		}
	}
	return &Dispatcher{pubs, &sync.WaitGroup{}}
}

func (d *Dispatcher) Dispatch(movements []domain.CoinMovement) {
	for _, m := range movements {
		m := m
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(m)
		}()
	}
}

// Close waits for in-flight deliveries to complete.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(m domain.CoinMovement) {
	topic, message := notificationMessage(m)
	stats.EventsDispatched.WithLabelValues(topic).Inc()

	for _, p := range d.publishers {
		if err := p.Publish(topic, message); err != nil {
			stats.DeliveryFailures.WithLabelValues(topic).Inc()
			log.WithError(err).WithFields(log.Fields{
				"topic":    topic,
				"account":  m.Account,
				"outpoint": m.Outpoint,
			}).Warn("failed to deliver notification")
		}
	}
}
