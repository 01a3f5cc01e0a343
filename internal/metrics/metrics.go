package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks currently upgraded peer connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talkwire_active_connections",
		Help: "Number of live WebSocket connections.",
	})

	// PublishTotal counts sharded publishes by outcome.
	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkwire_publish_total",
		Help: "Sharded publishes to room channels, by outcome.",
	}, []string{"outcome"})

	// PersistTotal counts event-row inserts by outcome.
	PersistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkwire_persist_total",
		Help: "Durable event inserts, by outcome.",
	}, []string{"outcome"})

	// DeliveredFrames counts pub/sub payloads forwarded to peers.
	DeliveredFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkwire_delivered_frames_total",
		Help: "Room channel payloads forwarded to a peer.",
	})

	// SubscriptionChanges counts room subscription moves.
	SubscriptionChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkwire_subscription_changes_total",
		Help: "Completed room subscription changes.",
	})

	// DecodeFailures counts frames and payloads dropped as undecodable.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkwire_decode_failures_total",
		Help: "Inbound frames or pub/sub payloads dropped as undecodable.",
	})
)
