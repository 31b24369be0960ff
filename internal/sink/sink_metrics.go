package sink

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the output sink.
type Metrics struct {
	PublishesTotal   *prometheus.CounterVec
	PublishAttempts  prometheus.Counter
	PublishDuration  prometheus.Histogram
	DeadLettersTotal prometheus.Counter
}

// NewMetrics registers and returns sink metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "augur_index_publishes_total",
			Help: "Total index publish outcomes.",
		}, []string{"outcome"}),
		PublishAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "augur_index_publish_attempts_total",
			Help: "Total individual publish HTTP attempts.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "augur_index_publish_duration_seconds",
			Help:    "Duration of individual publish attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		DeadLettersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "augur_dead_letters_total",
			Help: "Total documents written to the dead-letter file.",
		}),
	}

	reg.MustRegister(
		m.PublishesTotal,
		m.PublishAttempts,
		m.PublishDuration,
		m.DeadLettersTotal,
	)

	return m
}
