package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking and collection flows.
type SchedulingMetrics struct {
	bookingsTotal         *prometheus.CounterVec
	updatesTotal          *prometheus.CounterVec
	bookingLatency        *prometheus.HistogramVec
	collectionTransitions *prometheus.CounterVec
	reconciledTotal       *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by result",
		}, []string{"result"}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "appointment_updates_total",
			Help:      "Total appointment updates by result",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of booking requests including lock wait",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		collectionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "collections",
			Name:      "transitions_total",
			Help:      "Collection status changes by target status",
		}, []string{"status"}),
		reconciledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "collections",
			Name:      "reconciled_rows_total",
			Help:      "Collections moved to OVERDUE by reconciliation",
		}, []string{"trigger"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.updatesTotal, m.bookingLatency, m.collectionTransitions, m.reconciledTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(result string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.WithLabelValues(result).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveUpdate(result string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveCollectionTransition(status string) {
	if m == nil {
		return
	}
	m.collectionTransitions.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveReconciled(trigger string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.reconciledTotal.WithLabelValues(trigger).Add(float64(rows))
}
