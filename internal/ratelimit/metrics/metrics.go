package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ratelimit_checks_total",
			Help: "Submission rate limit checks by result (allowed, limited, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) Observe(result string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(result).Inc()
}
