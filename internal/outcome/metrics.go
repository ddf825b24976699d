package outcome

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outcome publishing.
type Metrics struct {
	Published *prometheus.CounterVec
	Failed    prometheus.Counter
	Dropped   prometheus.Counter
}

// NewMetrics registers outcome metrics with reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_outcomes_published_total",
			Help: "Outcome events handed to a sink by method",
		}, []string{"method"}),
		Failed: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_outcomes_failed_total",
			Help: "Outcome events the sink failed to deliver",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_outcomes_dropped_total",
			Help: "Outcome events evicted from the in-memory log",
		}),
	}
}

func (m *Metrics) IncrementPublished(method string) {
	if m != nil {
		m.Published.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) IncrementFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}
