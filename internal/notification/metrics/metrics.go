package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NotificationsCreated prometheus.Counter
	NotificationsRead    prometheus.Counter
	Responses            *prometheus.CounterVec
	PushEnqueued         prometheus.Counter
	PushDropped          prometheus.Counter
	PushDelivered        *prometheus.CounterVec
	PushFailed           *prometheus.CounterVec
	PushBreakerOpen      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_notifications_created_total",
			Help: "Total number of notifications created by request fan-out",
		}),
		NotificationsRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_notifications_read_total",
			Help: "Total number of mark-read calls accepted",
		}),
		Responses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_notification_responses_total",
			Help: "Total number of donor responses, by response",
		}, []string{"response"}),
		PushEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_push_jobs_enqueued_total",
			Help: "Total number of push jobs accepted by the dispatcher",
		}),
		PushDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_push_jobs_dropped_total",
			Help: "Total number of push jobs dropped because the queue was full",
		}),
		PushDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_push_delivered_total",
			Help: "Total number of push messages handed to a channel, by channel",
		}, []string{"channel"}),
		PushFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_push_failed_total",
			Help: "Total number of failed push deliveries, by channel",
		}, []string{"channel"}),
		PushBreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "donorlink_push_breaker_open",
			Help: "1 while the primary push channel circuit is open",
		}),
	}
}

func (m *Metrics) AddCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NotificationsCreated.Add(float64(n))
}

func (m *Metrics) IncrementRead() {
	if m == nil {
		return
	}
	m.NotificationsRead.Inc()
}

func (m *Metrics) IncrementResponse(response string) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(response).Inc()
}

func (m *Metrics) IncrementEnqueued() {
	if m == nil {
		return
	}
	m.PushEnqueued.Inc()
}

func (m *Metrics) IncrementDropped() {
	if m == nil {
		return
	}
	m.PushDropped.Inc()
}

func (m *Metrics) IncrementDelivered(channel string) {
	if m == nil {
		return
	}
	m.PushDelivered.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncrementFailed(channel string) {
	if m == nil {
		return
	}
	m.PushFailed.WithLabelValues(channel).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.PushBreakerOpen.Set(1)
		return
	}
	m.PushBreakerOpen.Set(0)
}
