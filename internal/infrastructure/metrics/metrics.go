package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	feedsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricealert",
			Subsystem: "feed",
			Name:      "connections_live",
			Help:      "Current number of feed connections not yet closed.",
		},
	)

	feedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "feed",
			Name:      "ticks_total",
			Help:      "Total number of decoded price ticks.",
		},
		[]string{"instrument"},
	)

	feedParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "feed",
			Name:      "parse_errors_total",
			Help:      "Total number of malformed feed messages dropped.",
		},
		[]string{"instrument"},
	)

	feedCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "feed",
			Name:      "closes_total",
			Help:      "Feed connection close events by reconnect decision.",
		},
		[]string{"instrument", "decision"},
	)

	relayPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "relay",
			Name:      "publish_failures_total",
			Help:      "Ticks dropped because the notification channel rejected them.",
		},
	)

	evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Tick evaluations by outcome.",
		},
		[]string{"outcome"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricealert",
			Subsystem: "evaluator",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a single tick evaluation including storage round-trips.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	alertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricealert",
			Subsystem: "evaluator",
			Name:      "alerts_triggered_total",
			Help:      "Alerts flipped from active to triggered.",
		},
		[]string{"instrument"},
	)
)

func init() {
	Registry.MustRegister(
		feedsLive,
		feedTicks,
		feedParseErrors,
		feedCloses,
		relayPublishFailures,
		evaluations,
		evaluationDuration,
		alertsTriggered,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func FeedOpened() { feedsLive.Inc() }

func FeedClosed() { feedsLive.Dec() }

func RecordTick(instrument string) { feedTicks.WithLabelValues(instrument).Inc() }

func RecordParseError(instrument string) { feedParseErrors.WithLabelValues(instrument).Inc() }

// RecordClose labels a close event with the supervisor's decision:
// "reconnect", "unsubscribe", "error" or "stopped".
func RecordClose(instrument, decision string) {
	feedCloses.WithLabelValues(instrument, decision).Inc()
}

func RecordPublishFailure() { relayPublishFailures.Inc() }

// RecordEvaluation records one evaluation outcome: "noop", "triggered" or "error".
func RecordEvaluation(outcome string, seconds float64) {
	evaluations.WithLabelValues(outcome).Inc()
	evaluationDuration.Observe(seconds)
}

func RecordTriggered(instrument string, n int) {
	alertsTriggered.WithLabelValues(instrument).Add(float64(n))
}
