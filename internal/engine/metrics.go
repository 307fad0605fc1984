package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what a VM executes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Runs         prometheus.Counter
	Instructions *prometheus.CounterVec
	Faults       *prometheus.CounterVec
	Yields       prometheus.Counter
	Duration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Pass a
// fresh prometheus.NewRegistry() per VM in tests to avoid duplicate
// registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scrawl",
			Subsystem: "vm",
			Name:      "runs_total",
			Help:      "Programs executed, including faulted runs.",
		}),
		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scrawl",
			Subsystem: "vm",
			Name:      "instructions_total",
			Help:      "Instructions dispatched, by opcode mnemonic.",
		}, []string{"opcode"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scrawl",
			Subsystem: "vm",
			Name:      "faults_total",
			Help:      "Engine-fatal faults, by error code.",
		}, []string{"code"}),
		Yields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scrawl",
			Subsystem: "vm",
			Name:      "yields_total",
			Help:      "Values appended by X_YIELD.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scrawl",
			Subsystem: "vm",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.Runs, m.Instructions, m.Faults, m.Yields, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) run() {
	if m != nil {
		m.Runs.Inc()
	}
}

func (m *Metrics) instruction(mnemonic string) {
	if m != nil {
		m.Instructions.WithLabelValues(mnemonic).Inc()
	}
}

func (m *Metrics) fault(code RuntimeErrorCode) {
	if m != nil {
		m.Faults.WithLabelValues(string(code)).Inc()
	}
}

func (m *Metrics) yield() {
	if m != nil {
		m.Yields.Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.Duration.Observe(seconds)
	}
}
