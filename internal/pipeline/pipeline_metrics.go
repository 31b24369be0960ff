package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/augur/internal/enrich"
)

// Metrics holds Prometheus metrics for the enrichment loop.
type Metrics struct {
	RecordsTotal     *prometheus.CounterVec
	RecordDuration   prometheus.Histogram
	InvalidDocsTotal prometheus.Counter
	JournalWrites    prometheus.Counter
	LLMCallsTotal    *prometheus.CounterVec
	LLMCallDuration  *prometheus.HistogramVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "augur_records_total",
			Help: "Total alert records handled, by outcome.",
		}, []string{"outcome"}),
		RecordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "augur_record_duration_seconds",
			Help:    "End-to-end processing time per record in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		InvalidDocsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "augur_invalid_documents_total",
			Help: "Total documents that failed the output gate but were kept.",
		}),
		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "augur_journal_writes_total",
			Help: "Total documents appended to the local journal.",
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "augur_llm_calls_total",
			Help: "Total LLM backend calls by backend and outcome.",
		}, []string{"backend", "outcome"}),
		LLMCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "augur_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s .. ~128s
		}, []string{"backend"}),
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.RecordDuration,
		m.InvalidDocsTotal,
		m.JournalWrites,
		m.LLMCallsTotal,
		m.LLMCallDuration,
	)

	return m
}

// Hooks returns enrichment hooks that feed the LLM call metrics.
func (m *Metrics) Hooks() enrich.Hooks {
	return enrich.Hooks{
		OnCall: func(backend string, ok bool, duration float64) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.LLMCallsTotal.WithLabelValues(backend, outcome).Inc()
			m.LLMCallDuration.WithLabelValues(backend).Observe(duration)
		},
	}
}
