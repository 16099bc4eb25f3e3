package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the email scheduler. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// EmailsTotal counts decisions by trigger, event and outcome.
	EmailsTotal *prometheus.CounterVec

	// SweepPending is the number of appointments seen by the last sweep.
	SweepPending prometheus.Gauge

	// SendDuration is the time spent delivering one message.
	SendDuration prometheus.Histogram

	// Retries is the total number of retry attempts.
	Retries prometheus.Counter

	// SweepSkippedLocked counts sweeps skipped because another run held the lock.
	SweepSkippedLocked prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics for reminders.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EmailsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_total",
				Help:      "Customer email decisions by trigger, event and outcome",
			},
			[]string{"trigger", "event", "outcome"},
		),

		SweepPending: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminder_sweep_pending",
				Help:      "Appointments without reminder_sent_at seen by the last sweep",
			},
		),

		SendDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "email_send_duration_seconds",
				Help:      "Time to deliver an email including retries",
				Buckets:   []float64{.05, .1, .5, 1, 2, 5, 10},
			},
		),

		Retries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "email_send_retries_total",
				Help:      "Total number of retry attempts",
			},
		),

		SweepSkippedLocked: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_sweep_locked_total",
				Help:      "Sweeps skipped because another run held the lock",
			},
		),
	}
}

// IncOutcome counts one decision. outcome is sent, failed, deferred or a
// skip reason.
func (m *Metrics) IncOutcome(trigger Trigger, event EventType, outcome string) {
	if m == nil {
		return
	}
	t := "event"
	if trigger == TriggerSweep {
		t = "sweep"
	}
	m.EmailsTotal.WithLabelValues(t, string(event), outcome).Inc()
}

// SetPending sets the size of the last sweep.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.SweepPending.Set(float64(n))
}

// ObserveSendDuration records the time taken to send a message.
func (m *Metrics) ObserveSendDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SendDuration.Observe(seconds)
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// IncLocked increments the locked-sweep counter.
func (m *Metrics) IncLocked() {
	if m == nil {
		return
	}
	m.SweepSkippedLocked.Inc()
}
