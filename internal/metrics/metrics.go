// Package metrics holds the process-wide Prometheus collectors exposed on
// the observability server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "groupmemail"

var (
	ChatAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_api_requests_total",
			Help:      "Chat platform API calls by endpoint and HTTP status.",
		},
		[]string{"endpoint", "status"},
	)

	ChatAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_api_request_duration_seconds",
			Help:      "Chat platform API latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ChatEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_events_total",
			Help:      "Inbound chat events by outcome.",
		},
		[]string{"outcome"},
	)

	EmailReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_replies_total",
			Help:      "Inbound email replies by outcome.",
		},
		[]string{"outcome"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Outbound emails by result.",
		},
		[]string{"result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Failure notices delivered by kind.",
		},
		[]string{"kind"},
	)

	Subscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Stored subscriptions by state.",
		},
		[]string{"state"},
	)
)
