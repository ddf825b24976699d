package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the roster cache.
type Metrics struct {
	ResyncTotal    *prometheus.CounterVec
	ResyncDuration prometheus.Histogram
	Applies        *prometheus.CounterVec
	Drift          prometheus.Counter
	MirrorErrors   prometheus.Counter
	Students       prometheus.Gauge
}

// New registers cache metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ResyncTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_cache_resync_total",
			Help: "Total full resynchronizations by result",
		}, []string{"result"}), // result: "ok", "stale", "error"

		ResyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_cache_resync_duration_seconds",
			Help:    "Duration of full resynchronization against the ledger",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Applies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_cache_applies_total",
			Help: "Confirmed receipts applied to the cache by method",
		}, []string{"method"}),

		Drift: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_cache_drift_total",
			Help: "Times the cache disagreed with the ledger and was marked stale",
		}),

		MirrorErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_cache_mirror_errors_total",
			Help: "Failed writes to the snapshot mirror",
		}),

		Students: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_cache_students",
			Help: "Students in the cached roster",
		}),
	}
}

func (m *Metrics) ObserveResync(result string, d time.Duration) {
	if m != nil {
		m.ResyncTotal.WithLabelValues(result).Inc()
		m.ResyncDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementApply(method string) {
	if m != nil {
		m.Applies.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) IncrementDrift() {
	if m != nil {
		m.Drift.Inc()
	}
}

func (m *Metrics) IncrementMirrorErrors() {
	if m != nil {
		m.MirrorErrors.Inc()
	}
}

func (m *Metrics) SetStudents(n uint64) {
	if m != nil {
		m.Students.Set(float64(n))
	}
}
