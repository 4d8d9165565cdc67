package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsObserve(t *testing.T) {
	m := NewPaymentMetrics(prometheus.NewRegistry())
	m.ObserveIntent("created")
	m.ObserveConfirmation("confirmed")
	m.ObserveMismatch()
	m.ObserveVerifyLatency(0.25)
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.ObserveIntent("created")
	m.ObserveConfirmation("mismatch")
	m.ObserveMismatch()
	m.ObserveVerifyLatency(0.1)
}
