package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DonationsRecorded prometheus.Counter
	DonationsRejected *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		DonationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_donations_recorded_total",
			Help: "Total number of donations recorded",
		}),
		DonationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_donations_rejected_total",
			Help: "Total number of donation recordings rejected, by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncrementRecorded() {
	if m == nil {
		return
	}
	m.DonationsRecorded.Inc()
}

func (m *Metrics) IncrementRejected(code string) {
	if m == nil {
		return
	}
	m.DonationsRejected.WithLabelValues(code).Inc()
}
