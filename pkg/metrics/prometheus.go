package metrics

import (
	"sync"

	"github.com/matt-steen/chore-board/pkg/board"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements board.Metrics with Prometheus counters and histograms.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	mutations *prometheus.CounterVec
	persist   *prometheus.HistogramVec
}

var _ board.Metrics = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector registering with reg (prometheus.DefaultRegisterer if nil)
// under namespace ("chore_board" if empty). Metrics are registered on first use.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	if namespace == "" {
		namespace = "chore_board"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Board store mutations by operation, failure policy and outcome.",
		}, []string{"op", "policy", "outcome"})

		p.persist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "persist_seconds",
			Help:      "Duration of board service calls made by store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
		}, []string{"op"})

		p.reg.MustRegister(p.mutations, p.persist)
	})
}

// RecordMutation counts one store operation.
func (p *PrometheusCollector) RecordMutation(op board.Operation, outcome string) {
	p.ensureRegistered()
	p.mutations.WithLabelValues(string(op), board.PolicyFor(op).String(), outcome).Inc()
}

// ObservePersist records the duration of a board service call.
func (p *PrometheusCollector) ObservePersist(op board.Operation, seconds float64) {
	p.ensureRegistered()
	p.persist.WithLabelValues(string(op)).Observe(seconds)
}
