package stats

import "github.com/prometheus/client_golang/prometheus"

const namespace = "watchdescriptor"

var (
	// EventsDispatched counts the coin movement notifications handed over to
	// the publishers, by topic.
	EventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dispatched_total",
		Help:      "Number of coin movement notifications dispatched.",
	}, []string{"topic"})
	// DeliveryFailures counts the notifications a publisher failed to deliver.
	DeliveryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Number of notifications that could not be delivered.",
	}, []string{"topic"})
	WatchedWallets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watched_wallets",
		Help:      "Number of watched descriptor wallets.",
	})
	RescanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rescan_duration_seconds",
		Help:      "Time spent rescanning the watched wallets on new blocks.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	ExplorerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "explorer_requests_total",
		Help:      "Number of requests made to the explorer, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		EventsDispatched, DeliveryFailures, WatchedWallets, RescanDuration,
		ExplorerRequests,
	)
}
