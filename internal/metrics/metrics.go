package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OAuth Flow Metrics
var (
	// OAuthFlowsInitiated tracks started OAuth flows by platform
	OAuthFlowsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_flows_initiated_total",
			Help: "Total OAuth flows initiated by platform",
		},
		[]string{"platform"},
	)

	// OAuthCallbacksTotal tracks callback outcomes by platform and result
	OAuthCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_callbacks_total",
			Help: "Total OAuth callbacks by platform and result (connected/denied/invalid_session/exchange_failed/error)",
		},
		[]string{"platform", "result"},
	)

	// TokenExchangesTotal tracks token exchange attempts by platform and result
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_exchanges_total",
			Help: "Total token exchange attempts by platform and result (success/network/status/malformed)",
		},
		[]string{"platform", "result"},
	)

	// TokenExchangeDuration tracks token exchange latency in seconds
	TokenExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_exchange_duration_seconds",
			Help:    "Token exchange duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"platform"},
	)

	// TokenDecryptFailures tracks decrypt failures on stored tokens
	TokenDecryptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_decrypt_failures_total",
			Help: "Total stored token decrypt failures by platform",
		},
		[]string{"platform"},
	)
)

// Connection Metrics
var (
	// ConnectionsDisconnected tracks manual disconnects by platform
	ConnectionsDisconnected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_disconnected_total",
			Help: "Total manual platform disconnections by platform",
		},
		[]string{"platform"},
	)

	// SessionsSweptTotal tracks expired OAuth sessions removed by the sweeper
	SessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_sessions_swept_total",
			Help: "Total expired OAuth sessions removed by the sweeper",
		},
	)
)

// Circuit Breaker Metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)
