package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DonorsRegistered prometheus.Counter
	Searches         *prometheus.CounterVec
	SearchDuration   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		DonorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_donors_registered_total",
			Help: "Total number of donor registrations",
		}),
		Searches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_donor_searches_total",
			Help: "Total number of donor searches, by cache outcome",
		}, []string{"cache"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "donorlink_donor_search_duration_seconds",
			Help:    "Latency of uncached donor searches",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	if m == nil {
		return
	}
	m.DonorsRegistered.Inc()
}

func (m *Metrics) IncrementSearch(cacheHit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	m.Searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSearchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(seconds)
}
