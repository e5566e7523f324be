package httpapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the runtime counters SPEC_FULL.md §10 binds to
// prometheus/client_golang: turns executed, ingest outcomes by media type,
// and quota-exhaustion events surfaced through the /ask and /summarize
// orchestrator paths. Each Metrics owns its own registry rather than the
// global default one, so multiple Server instances (tests included) never
// collide on duplicate registration.
type Metrics struct {
	registry       *prometheus.Registry
	turnsTotal     *prometheus.CounterVec
	ingestTotal    *prometheus.CounterVec
	quotaExhausted prometheus.Counter
}

// NewMetrics creates and registers a fresh set of counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_agent_orchestrator_turns_total",
			Help: "Orchestrator turns executed, labeled by outcome.",
		}, []string{"outcome"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_agent_ingest_total",
			Help: "Ingested messages, labeled by media type and outcome.",
		}, []string{"media_type", "outcome"}),
		quotaExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_agent_quota_exhausted_total",
			Help: "LLM provider quota-exhaustion events observed.",
		}),
	}
	m.registry.MustRegister(m.turnsTotal, m.ingestTotal, m.quotaExhausted)
	return m
}

func (m *Metrics) recordTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordIngest(mediaType, outcome string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(mediaType, outcome).Inc()
}

func (m *Metrics) recordQuotaExhausted() {
	if m == nil {
		return
	}
	m.quotaExhausted.Inc()
}
