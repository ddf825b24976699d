package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for transaction submission.
type Metrics struct {
	// Submissions accepted by the ledger, by method
	Submitted *prometheus.CounterVec

	// Terminal outcomes by method and status
	Outcomes *prometheus.CounterVec

	// Submit-to-terminal latency by method
	ConfirmationLatency *prometheus.HistogramVec

	// Transactions awaiting a terminal outcome
	InFlight prometheus.Gauge

	// Submissions refused because the (method, target) slot was taken
	SlotBusy prometheus.Counter

	// Submissions refused by the open circuit breaker
	FailFast prometheus.Counter
}

// New registers gateway metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_gateway_submitted_total",
			Help: "Total transactions accepted by the ledger by method",
		}, []string{"method"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_gateway_outcomes_total",
			Help: "Total terminal transaction outcomes by method and status",
		}, []string{"method", "status"}), // status: "confirmed", "rejected"

		ConfirmationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_gateway_confirmation_duration_seconds",
			Help:    "Duration from submission to terminal outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
		}, []string{"method"}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_gateway_in_flight",
			Help: "Transactions submitted and not yet terminal",
		}),

		SlotBusy: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_gateway_slot_busy_total",
			Help: "Submissions refused because the same operation was pending",
		}),

		FailFast: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_gateway_fail_fast_total",
			Help: "Submissions refused while the ledger circuit breaker was open",
		}),
	}
}

func (m *Metrics) IncrementSubmitted(method string) {
	if m != nil {
		m.Submitted.WithLabelValues(method).Inc()
		m.InFlight.Inc()
	}
}

// ObserveOutcome records a terminal outcome and its latency.
func (m *Metrics) ObserveOutcome(method, status string, d time.Duration) {
	if m != nil {
		m.Outcomes.WithLabelValues(method, status).Inc()
		m.ConfirmationLatency.WithLabelValues(method).Observe(d.Seconds())
		m.InFlight.Dec()
	}
}

func (m *Metrics) IncrementSlotBusy() {
	if m != nil {
		m.SlotBusy.Inc()
	}
}

func (m *Metrics) IncrementFailFast() {
	if m != nil {
		m.FailFast.Inc()
	}
}
