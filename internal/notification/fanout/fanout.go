// Package fanout turns an admitted blood request into one notification per
// compatible, eligible donor.
package fanout

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"donorlink/internal/compatibility"
	donorModels "donorlink/internal/donor/models"
	"donorlink/internal/eligibility"
	notificationModels "donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
)

// DefaultCeiling bounds how many donors one request can notify.
const DefaultCeiling = 1000

var tracer = otel.Tracer("donorlink/notification/fanout")

type Engine struct {
	evaluator *eligibility.Evaluator
	ceiling   int
	newID     func() string
}

type Option func(*Engine)

func WithCeiling(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.ceiling = n
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func New(evaluator *eligibility.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		evaluator: evaluator,
		ceiling:   DefaultCeiling,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Criteria builds the candidate predicate for req at the request's creation
// time. Fan-out runs on behalf of a signed-in requester, so both profile
// visibilities are reachable.
func (e *Engine) Criteria(req *requestModels.BloodRequest) storage.DonorCriteria {
	c := storage.DonorCriteria{
		Groups:              compatibility.CompatibleDonorGroups(req.BloodGroup),
		ProfileVisibilities: donorModels.DiscoverableProfiles(true),
		EligibleCutoff:      e.evaluator.Cutoff(req.CreatedAt),
		Limit:               e.ceiling,
	}
	if !req.NotifyAll {
		c.City = req.RequesterCity
		c.State = req.RequesterState
		c.MatchCityOrState = true
	}
	if req.RequesterID != nil {
		c.ExcludeIDs = []string{*req.RequesterID}
	}
	return c
}

// FanOut inserts notifications for every candidate in one bulk write and
// returns only the rows that were new. Running it twice for the same request
// creates nothing the second time.
func (e *Engine) FanOut(ctx context.Context, st storage.Stores, req *requestModels.BloodRequest) ([]*notificationModels.Notification, error) {
	ctx, span := tracer.Start(ctx, "fanout.FanOut")
	defer span.End()
	span.SetAttributes(
		attribute.String("blood_request.id", req.ID),
		attribute.String("blood_request.blood_group", string(req.BloodGroup)),
		attribute.Bool("blood_request.notify_all", req.NotifyAll),
	)

	candidates, err := st.Donors.Search(ctx, e.Criteria(req))
	if err != nil {
		span.SetStatus(codes.Error, "candidate search failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find donor candidates")
	}

	batch := make([]*notificationModels.Notification, 0, len(candidates))
	for _, d := range candidates {
		batch = append(batch, notificationModels.NewNotification(e.newID(), req.ID, d.ID, req.CreatedAt))
	}
	if len(batch) == 0 {
		span.SetAttributes(attribute.Int("fanout.notified", 0))
		return batch, nil
	}

	inserted, err := st.Notifications.InsertBatch(ctx, batch)
	if err != nil {
		span.SetStatus(codes.Error, "notification insert failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notifications")
	}
	span.SetAttributes(
		attribute.Int("fanout.candidates", len(candidates)),
		attribute.Int("fanout.notified", len(inserted)),
	)
	return inserted, nil
}
