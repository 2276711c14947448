// Package service runs the blood request lifecycle: admission under the
// per-requester limit, creation with donor fan-out, completion and reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"donorlink/internal/admission"
	"donorlink/internal/audit"
	donationModels "donorlink/internal/donation/models"
	notificationModels "donorlink/internal/notification/models"
	"donorlink/internal/notification/push"
	"donorlink/internal/request/metrics"
	"donorlink/internal/request/models"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/sentinel"
	"donorlink/pkg/requestcontext"
)

const (
	DefaultActiveWindow = 7 * 24 * time.Hour
	DefaultActiveLimit  = 100
)

var tracer = otel.Tracer("donorlink/request/service")

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// FanOut creates notifications for a request inside the caller's transaction.
type FanOut interface {
	FanOut(ctx context.Context, st storage.Stores, req *models.BloodRequest) ([]*notificationModels.Notification, error)
}

// DonationRecorder records the donation that fulfilled a request as part of
// the completion transaction.
type DonationRecorder interface {
	RecordInTx(ctx context.Context, st storage.Stores, donorID string, details donationModels.Details, now time.Time) (*donationModels.Donation, error)
	AfterCommit(ctx context.Context, donation *donationModels.Donation)
}

// Pusher accepts push jobs without blocking.
type Pusher interface {
	Enqueue(ctx context.Context, jobs ...push.Job) int
}

type Service struct {
	uow            storage.UnitOfWork
	fanOut         FanOut
	policy         admission.Policy
	donations      DonationRecorder
	pusher         Pusher
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	newID          func() string
	activeWindow   time.Duration
	activeLimit    int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithPolicy(p admission.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithDonationRecorder(r DonationRecorder) Option {
	return func(s *Service) {
		s.donations = r
	}
}

func WithPusher(p Pusher) Option {
	return func(s *Service) {
		s.pusher = p
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithActiveListing bounds GET /blood-requests/active.
func WithActiveListing(window time.Duration, limit int) Option {
	return func(s *Service) {
		if window > 0 {
			s.activeWindow = window
		}
		if limit > 0 {
			s.activeLimit = limit
		}
	}
}

func New(uow storage.UnitOfWork, fanOut FanOut, opts ...Option) (*Service, error) {
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if fanOut == nil {
		return nil, errors.New("fan-out engine is required")
	}
	svc := &Service{
		uow:          uow,
		fanOut:       fanOut,
		policy:       admission.NewPolicy(admission.DefaultLimit, admission.DefaultWindow),
		logger:       slog.Default(),
		newID:        uuid.NewString,
		activeWindow: DefaultActiveWindow,
		activeLimit:  DefaultActiveLimit,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create admits the request against the requester's limit, persists it and
// fans out notifications in one transaction. A rejected request writes
// nothing. Push jobs are enqueued only after commit.
//
// A requester's very first request has no throttle row to lock, so two
// simultaneous first requests can both be admitted. Every later request is
// serialized on that row.
func (s *Service) Create(ctx context.Context, requesterID string, req *models.CreateRequest) (*models.CreateResult, error) {
	if requesterID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	start := time.Now()
	now := requestcontext.Now(ctx)

	ctx, span := tracer.Start(ctx, "request.Create")
	defer span.End()
	span.SetAttributes(attribute.String("blood_request.blood_group", req.ParsedBloodGroup().String()))

	var (
		created  *models.BloodRequest
		notified []*notificationModels.Notification
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		state, err := st.Throttles.Get(ctx, requesterID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			state = &admission.ThrottleState{RequesterID: requesterID}
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request limit")
		}

		next, decision := s.policy.Admit(*state, now)
		if !decision.Allowed {
			return dErrors.RateLimited("too many blood requests, try again later", decision.MinutesUntilReset)
		}
		if err := st.Throttles.Put(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request limit")
		}

		created = s.build(requesterID, req, now)
		if err := st.Requests.Create(ctx, created); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create blood request")
		}

		notified, err = s.fanOut.FanOut(ctx, st, created)
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.rejected(ctx, requesterID, err)
		}
		span.SetAttributes(attribute.String("error.code", string(dErrors.CodeOf(err))))
		return nil, err
	}

	span.SetAttributes(attribute.Int("fanout.notified", len(notified)))
	s.metrics.IncrementAdmitted(string(created.Urgency))
	s.metrics.ObserveFanOut(len(notified))
	s.metrics.ObserveCreateDuration(time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "blood request admitted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requesterID,
		"blood_request_id", created.ID,
		"blood_group", created.BloodGroup,
		"notified", len(notified),
	)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionRequestAdmitted,
		UserID:    requesterID,
		Subject:   created.ID,
		Timestamp: now,
	})
	if s.pusher != nil && len(notified) > 0 {
		s.pusher.Enqueue(ctx, push.RequestJobs(created, notified)...)
	}
	return &models.CreateResult{ID: created.ID, NotifiedCount: len(notified)}, nil
}

func (s *Service) build(requesterID string, req *models.CreateRequest, now time.Time) *models.BloodRequest {
	id := requesterID
	return &models.BloodRequest{
		ID:             s.newID(),
		RequesterID:    &id,
		RequesterName:  req.RequesterName,
		RequesterPhone: req.RequesterPhone,
		BloodGroup:     req.ParsedBloodGroup(),
		Urgency:        models.Urgency(req.Urgency),
		Location:       req.Location,
		Hospital:       req.Hospital,
		Message:        req.Message,
		RequesterCity:  req.RequesterCity,
		RequesterState: req.RequesterState,
		NotifyRadiusKm: req.NotifyRadius,
		NotifyAll:      req.NotifyAll,
		Status:         models.StatusActive,
		CreatedAt:      now,
	}
}

func (s *Service) rejected(ctx context.Context, requesterID string, err error) {
	s.metrics.IncrementRateLimited()
	minutes := 0
	if de, ok := dErrors.As(err); ok {
		minutes = de.RetryAfterMinutes
	}
	s.logger.WarnContext(ctx, "blood request rate limited",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requesterID,
		"retry_after_minutes", minutes,
	)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionRequestRateLimited,
		UserID:    requesterID,
		Reason:    "limit_exceeded",
		Timestamp: requestcontext.Now(ctx),
	})
}

// Complete marks the caller's own request fulfilled. When donorID is given the
// donor's donation is recorded in the same transaction, which also starts
// their cooldown.
func (s *Service) Complete(ctx context.Context, userID, requestID string, donorID *string) (*models.BloodRequest, error) {
	now := requestcontext.Now(ctx)
	var (
		completed *models.BloodRequest
		donation  *donationModels.Donation
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		req, err := st.Requests.FindByID(ctx, requestID)
		if err != nil {
			return translate(err, "failed to load blood request")
		}
		if err := req.CanComplete(userID); err != nil {
			return err
		}

		if donorID != nil && s.donations != nil {
			notes := fmt.Sprintf("Donated for blood request: %s at %s", req.BloodGroup.Display(), req.Location)
			details := donationModels.Details{Location: &req.Location, Notes: &notes}
			donation, err = s.donations.RecordInTx(ctx, st, *donorID, details, now)
			if err != nil {
				return err
			}
		}

		if err := st.Requests.Complete(ctx, requestID, donorID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeAlreadyCompleted, "request is already completed")
			}
			return translate(err, "failed to complete blood request")
		}
		req.ApplyCompletion(donorID, now)
		completed = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if donation != nil {
		s.donations.AfterCommit(ctx, donation)
	}
	s.metrics.IncrementCompleted()
	s.logger.InfoContext(ctx, "blood request completed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"blood_request_id", completed.ID,
	)
	reason := ""
	if donorID != nil {
		reason = "donor:" + *donorID
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionRequestCompleted,
		UserID:    userID,
		Subject:   completed.ID,
		Reason:    reason,
		Timestamp: now,
	})
	return completed, nil
}

func (s *Service) Get(ctx context.Context, requestID string) (*models.BloodRequest, error) {
	req, err := s.uow.Stores().Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "failed to load blood request")
	}
	return req, nil
}

// ListActive returns recent ACTIVE requests, most urgent first.
func (s *Service) ListActive(ctx context.Context) ([]*models.BloodRequest, error) {
	since := requestcontext.Now(ctx).Add(-s.activeWindow)
	list, err := s.uow.Stores().Requests.ListActive(ctx, since, s.activeLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active requests")
	}
	if list == nil {
		list = []*models.BloodRequest{}
	}
	return list, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "blood request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
