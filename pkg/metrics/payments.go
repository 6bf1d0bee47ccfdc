package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Billing charge outcomes.
const (
	OutcomeSucceeded       = "succeeded"
	OutcomeDeclined        = "declined"
	OutcomeTransportError  = "transport_error"
	OutcomeNoToken         = "no_token"
	OutcomeTokenLookup     = "token_lookup_error"
	OutcomeStorageError    = "storage_error"
	OutcomeUnrecorded      = "unrecorded"
	OutcomeAuthUnavailable = "auth_unavailable"
	OutcomeLocked          = "locked"
	OutcomeAlreadyPaid     = "already_paid"
)

// PaymentMetrics tracks recurring charges and IPN handling.
type PaymentMetrics struct {
	charges        *prometheus.CounterVec
	chargeDuration prometheus.Histogram
	sweepRows      *prometheus.GaugeVec
	notifications  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment collectors on reg. A nil registerer
// yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	charges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "charges_total",
		Help:      "Recurring rent charge attempts by outcome.",
	}, []string{"outcome"})
	chargeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "charge_duration_seconds",
		Help:      "Latency of gateway charge calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})
	sweepRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "last_sweep_rows",
		Help:      "Row counts of the most recent billing sweep.",
	}, []string{"result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payhere",
		Name:      "notifications_total",
		Help:      "Gateway IPN callbacks by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(charges, chargeDuration, sweepRows, notifications)
	return &PaymentMetrics{
		charges:        charges,
		chargeDuration: chargeDuration,
		sweepRows:      sweepRows,
		notifications:  notifications,
	}
}

func (p *PaymentMetrics) IncCharge(outcome string) {
	if p == nil || p.charges == nil {
		return
	}
	p.charges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) ObserveCharge(duration time.Duration) {
	if p == nil || p.chargeDuration == nil {
		return
	}
	p.chargeDuration.Observe(duration.Seconds())
}

// SetSweepRows publishes the processed/failed/skipped counts of a sweep.
func (p *PaymentMetrics) SetSweepRows(processed, failed, skipped int) {
	if p == nil || p.sweepRows == nil {
		return
	}
	p.sweepRows.WithLabelValues("processed").Set(float64(processed))
	p.sweepRows.WithLabelValues("failed").Set(float64(failed))
	p.sweepRows.WithLabelValues("skipped").Set(float64(skipped))
}

func (p *PaymentMetrics) IncNotification(outcome string) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}
