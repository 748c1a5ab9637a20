package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability and booking flows.
type BookingMetrics struct {
	attemptsTotal      *prometheus.CounterVec
	availabilityTotal  *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	recurringBatchSize prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking operations by outcome",
		}, []string{"operation", "outcome"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "availability_checks_total",
			Help:      "Total availability checks by result",
		}, []string{"result"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "operation_latency_seconds",
			Help:      "Latency of booking operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		recurringBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "recurring_occurrences",
			Help:      "Number of occurrences per recurring booking request",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.availabilityTotal, m.operationLatency, m.recurringBatchSize)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveRecurringBatch(occurrences int) {
	if m == nil {
		return
	}
	m.recurringBatchSize.Observe(float64(occurrences))
}
