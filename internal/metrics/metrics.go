package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engagement pipeline metrics
	DraftsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatspark_drafts_scheduled_total",
			Help: "Total drafts created by the scheduler",
		},
	)

	DraftsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatspark_drafts_queued_total",
			Help: "Total drafts published to the pending-send queue",
		},
	)

	DraftsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatspark_drafts_sent_total",
			Help: "Total drafts materialized as messages",
		},
	)

	DraftsDeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatspark_drafts_dead_lettered_total",
			Help: "Total drafts quarantined after exhausting redeliveries",
		},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatspark_messages_sent_total",
			Help: "Total messages created",
		},
		[]string{"origin"}, // "sync" or "draft"
	)

	// Gateway metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatspark_ws_connections_active",
			Help: "Currently registered websocket connections",
		},
	)

	ConnectionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatspark_ws_connections_evicted_total",
			Help: "Connections closed because the user reconnected elsewhere",
		},
	)
)
