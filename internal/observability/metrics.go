package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	ConversationEvents *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	ProviderErrors     *prometheus.CounterVec
	TurnOutcomes       *prometheus.CounterVec
	StageLatency       *prometheus.HistogramVec

	stageWindow *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active voice conversation sessions.",
		}),
		ConversationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_events_total",
			Help:      "Conversation lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TurnOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_outcomes_total",
			Help:      "Completed turns by terminal outcome.",
		}, []string{"outcome"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_latency_ms",
			Help:      "Per-stage turn latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"stage"}),
		stageWindow: newStageWindow(256),
	}
}

// ObserveTurnStage records one stage duration in both the histogram and the
// rolling percentile window.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if d < 0 {
		return
	}
	ms := float64(d.Milliseconds())
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stageWindow.Observe(stage, ms)
}

// ObserveTurnIndicator counts a named one-off signal in the rolling window.
func (m *Metrics) ObserveTurnIndicator(name string) {
	m.stageWindow.ObserveIndicator(name)
}

// TurnStages reports the rolling latency snapshot served by the perf
// endpoint.
func (m *Metrics) TurnStages() StageSnapshot {
	return m.stageWindow.Snapshot()
}

// ResetTurnStages clears the rolling window. Used by perf tooling between
// measurement runs.
func (m *Metrics) ResetTurnStages() {
	m.stageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
