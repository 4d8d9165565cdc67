package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics exposes counters/histograms for the booking payment flow.
type PaymentMetrics struct {
	intentsTotal       *prometheus.CounterVec
	confirmationsTotal *prometheus.CounterVec
	mismatchTotal      prometheus.Counter
	verifyLatency      prometheus.Histogram
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medport",
			Subsystem: "payments",
			Name:      "intents_total",
			Help:      "Total payment intents requested",
		}, []string{"status"}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medport",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Total booking confirmation attempts",
		}, []string{"result"}),
		mismatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medport",
			Subsystem: "payments",
			Name:      "capture_mismatch_total",
			Help:      "Captures whose amount or currency did not match the booking price",
		}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medport",
			Subsystem: "payments",
			Name:      "verify_capture_seconds",
			Help:      "Latency of server-side capture verification",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.confirmationsTotal, m.mismatchTotal, m.verifyLatency)
	return m
}

func (m *PaymentMetrics) ObserveIntent(status string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(status).Inc()
}

func (m *PaymentMetrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) ObserveMismatch() {
	if m == nil {
		return
	}
	m.mismatchTotal.Inc()
}

func (m *PaymentMetrics) ObserveVerifyLatency(seconds float64) {
	if m == nil {
		return
	}
	m.verifyLatency.Observe(seconds)
}
