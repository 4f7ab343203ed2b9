package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventSub Session Metrics
var (
	// SessionState tracks the session state machine (0=disconnected, 1=connecting,
	// 2=awaiting_welcome, 3=subscribing, 4=active, 5=reconnecting)
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventsub_session_state",
			Help: "Current EventSub session state (0=disconnected, 1=connecting, 2=awaiting_welcome, 3=subscribing, 4=active, 5=reconnecting)",
		},
	)

	// ReconnectsTotal tracks reconnect attempts by trigger
	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsub_reconnects_total",
			Help: "Total EventSub reconnects by trigger (dial_error/welcome_timeout/subscribe_failed/read_error/keepalive_timeout/reconnect_directive)",
		},
		[]string{"trigger"},
	)

	// FramesReceived tracks inbound frames by message type
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsub_frames_received_total",
			Help: "Total EventSub frames received by message type",
		},
		[]string{"type"},
	)

	// SubscriptionsActive tracks confirmed chat subscriptions on the current session
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventsub_subscriptions_active",
			Help: "Confirmed chat subscriptions on the current session",
		},
	)
)

// Command Engine Metrics
var (
	// CommandsDispatched tracks recognized commands by name
	CommandsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_dispatched_total",
			Help: "Total recognized commands dispatched by command name",
		},
		[]string{"command"},
	)
)

// Outbound Send Metrics
var (
	// SendsTotal tracks outbound send outcomes
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_sends_total",
			Help: "Total outbound sends by result (sent/throttled/dropped_permanent/dropped_exhausted)",
		},
		[]string{"result"},
	)

	// SendDuration tracks the full send path including rate token wait
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_send_duration_seconds",
			Help:    "Outbound send duration including rate limiter wait",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// RateTokensAvailable tracks the current token bucket level
	RateTokensAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_rate_tokens_available",
			Help: "Tokens currently available in the send rate bucket",
		},
	)

	// CircuitBreakerState tracks the Helix send breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helix_send_circuit_breaker_state",
			Help: "Helix send circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
