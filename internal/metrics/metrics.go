package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yield_optimizer"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Simulation metrics ─────────────────────────────────────────────────

var (
	SimTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sim",
		Name:      "ticks_total",
		Help:      "Total number of simulation ticks processed while simulating.",
	})

	SimSwitchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sim",
		Name:      "switches_total",
		Help:      "Total automatic protocol switches.",
	}, []string{"from", "to"})

	SimSimulating = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sim",
		Name:      "simulating",
		Help:      "1 while the simulation clock is running.",
	})

	SimRewardsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sim",
		Name:      "rewards_claimed_total",
		Help:      "Lifetime rewards claimed by switches, in deposit units.",
	})

	ProtocolAPY = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sim",
		Name:      "protocol_apy_percent",
		Help:      "Current simulated APY per protocol.",
	}, []string{"protocol"})
)

// ── Yield source metrics ───────────────────────────────────────────────

var (
	YieldFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "yields",
		Name:      "fetch_total",
		Help:      "Total number of remote pool fetch attempts.",
	}, []string{"status"})

	YieldFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "yields",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of remote pool fetches in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	YieldFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "yields",
		Name:      "fallback_total",
		Help:      "Responses served from the static default set.",
	}, []string{"operation"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by backend and result; rejected writes count as result=rejected.",
	}, []string{"backend", "result"})
)

// ── Rebalance / autopilot metrics ──────────────────────────────────────

var (
	RebalanceRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rebalance",
		Name:      "runs_total",
		Help:      "Scheduled rebalance evaluations by outcome.",
	}, []string{"outcome"})

	AutopilotPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "autopilot",
		Name:      "polls_total",
		Help:      "Remote simulate polls by status.",
	}, []string{"status"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Switch notifications by delivery status.",
	}, []string{"status"})
)
