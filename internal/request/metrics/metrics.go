package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsAdmitted    *prometheus.CounterVec
	RequestsRateLimited prometheus.Counter
	RequestsCompleted   prometheus.Counter
	FanOutSize          prometheus.Histogram
	CreateDuration      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		RequestsAdmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_blood_requests_admitted_total",
			Help: "Total number of blood requests admitted, by urgency",
		}, []string{"urgency"}),
		RequestsRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_blood_requests_rate_limited_total",
			Help: "Total number of blood requests rejected by the admission limit",
		}),
		RequestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_blood_requests_completed_total",
			Help: "Total number of blood requests marked completed",
		}),
		FanOutSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "donorlink_blood_request_fanout_size",
			Help:    "Number of donors notified per admitted request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "donorlink_blood_request_create_duration_seconds",
			Help:    "Time to admit, persist and fan out one request",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementAdmitted(urgency string) {
	if m == nil {
		return
	}
	m.RequestsAdmitted.WithLabelValues(urgency).Inc()
}

func (m *Metrics) IncrementRateLimited() {
	if m == nil {
		return
	}
	m.RequestsRateLimited.Inc()
}

func (m *Metrics) IncrementCompleted() {
	if m == nil {
		return
	}
	m.RequestsCompleted.Inc()
}

func (m *Metrics) ObserveFanOut(notified int) {
	if m == nil {
		return
	}
	m.FanOutSize.Observe(float64(notified))
}

func (m *Metrics) ObserveCreateDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(seconds)
}
