package push

import (
	"context"
	"log/slog"
	"time"

	"donorlink/internal/notification/metrics"
	"donorlink/internal/notification/models"
	"donorlink/pkg/platform/circuit"
)

const (
	DefaultQueueSize       = 1024
	defaultDeliveryTimeout = 5 * time.Second
	defaultDrainTimeout    = 10 * time.Second
)

// SubscriptionLister resolves the endpoints a user has registered.
type SubscriptionLister interface {
	ListByUsers(ctx context.Context, userIDs []string) ([]*models.PushSubscription, error)
}

// Dispatcher drains a bounded job queue into a primary channel. Consecutive
// primary failures open a circuit that routes deliveries to the fallback until
// the primary recovers.
type Dispatcher struct {
	subs            SubscriptionLister
	primary         Channel
	fallback        Channel
	breaker         *circuit.Breaker
	jobs            chan Job
	deliveryTimeout time.Duration
	drainTimeout    time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.jobs = make(chan Job, n)
		}
	}
}

func WithFallback(ch Channel) Option {
	return func(d *Dispatcher) {
		d.fallback = ch
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.deliveryTimeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(subs SubscriptionLister, primary Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:            subs,
		primary:         primary,
		jobs:            make(chan Job, DefaultQueueSize),
		deliveryTimeout: defaultDeliveryTimeout,
		drainTimeout:    defaultDrainTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fallback == nil {
		d.fallback = NewLogChannel(d.logger)
	}
	if d.breaker == nil {
		d.breaker = circuit.New("push:" + primary.Name())
	}
	return d
}

// Enqueue never blocks. Jobs that do not fit are dropped and counted; the
// returned value is how many were accepted.
func (d *Dispatcher) Enqueue(ctx context.Context, jobs ...Job) int {
	accepted := 0
	for _, job := range jobs {
		select {
		case d.jobs <- job:
			accepted++
			d.metrics.IncrementEnqueued()
		default:
			d.metrics.IncrementDropped()
		}
	}
	if dropped := len(jobs) - accepted; dropped > 0 {
		d.logger.WarnContext(ctx, "push queue full, jobs dropped",
			"dropped", dropped,
			"accepted", accepted,
		)
	}
	return accepted
}

// Pending reports how many jobs are waiting.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Run delivers jobs until ctx is done, then drains what is already queued
// within a bounded grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case job := <-d.jobs:
			d.process(ctx, job)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.drainTimeout)
	defer cancel()
	for {
		select {
		case job := <-d.jobs:
			d.process(ctx, job)
		default:
			return
		}
		if ctx.Err() != nil {
			d.logger.Warn("push drain timed out", "pending", len(d.jobs))
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	subs, err := d.subs.ListByUsers(ctx, []string{job.UserID})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load push subscriptions",
			"user_id", job.UserID,
			"error", err,
		)
		return
	}
	for _, sub := range subs {
		d.send(ctx, sub, job.Payload)
	}
}

func (d *Dispatcher) send(ctx context.Context, sub *models.PushSubscription, payload Payload) {
	callCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	err := d.primary.Deliver(callCtx, sub, payload)
	cancel()

	if err == nil {
		d.metrics.IncrementDelivered(d.primary.Name())
		if _, change := d.breaker.RecordSuccess(); change.Closed {
			d.metrics.SetBreakerOpen(false)
			d.logger.InfoContext(ctx, "push channel recovered", "channel", d.primary.Name())
		}
		return
	}

	d.metrics.IncrementFailed(d.primary.Name())
	useFallback, change := d.breaker.RecordFailure()
	if change.Opened {
		d.metrics.SetBreakerOpen(true)
		d.logger.WarnContext(ctx, "push channel circuit opened", "channel", d.primary.Name())
	}
	d.logger.WarnContext(ctx, "push delivery failed",
		"channel", d.primary.Name(),
		"user_id", sub.UserID,
		"subscription_id", sub.ID,
		"error", err,
	)
	if !useFallback {
		return
	}
	if err := d.fallback.Deliver(ctx, sub, payload); err != nil {
		d.metrics.IncrementFailed(d.fallback.Name())
		return
	}
	d.metrics.IncrementDelivered(d.fallback.Name())
}
