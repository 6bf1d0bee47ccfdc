package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncCharge(OutcomeSucceeded)
	m.IncCharge(OutcomeSucceeded)
	m.IncCharge(OutcomeDeclined)
	m.ObserveCharge(300 * time.Millisecond)
	m.SetSweepRows(2, 1, 4)
	m.IncNotification("token_issued")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "rentpay_billing_charges_total", "outcome", OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "rentpay_billing_charges_total", "outcome", OutcomeDeclined)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "rentpay_payhere_notifications_total", "outcome", "token_issued")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	family := findMetricFamily(mfs, "rentpay_billing_last_sweep_rows")
	require.NotNil(t, family)
	values := map[string]float64{}
	for _, metric := range family.GetMetric() {
		values[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"processed": 2, "failed": 1, "skipped": 4}, values)

	duration := findMetricFamily(mfs, "rentpay_billing_charge_duration_seconds")
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncCharge(OutcomeNoToken)
	m.ObserveCharge(time.Second)
	m.SetSweepRows(0, 0, 0)
	m.IncNotification("ignored")

	NewPaymentMetrics(nil).IncCharge(OutcomeLocked)
}
