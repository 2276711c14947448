// Package service covers donor registration, profiles and discovery.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"donorlink/internal/audit"
	"donorlink/internal/compatibility"
	donationModels "donorlink/internal/donation/models"
	"donorlink/internal/donor/cache"
	"donorlink/internal/donor/metrics"
	"donorlink/internal/donor/models"
	"donorlink/internal/eligibility"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/sentinel"
	"donorlink/pkg/requestcontext"
)

const (
	DefaultPageSize     = 20
	DefaultMaxPageSize  = 50
	profileHistoryLimit = 10
)

var tracer = otel.Tracer("donorlink/donor/service")

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Profile is the signed-in donor's own view.
type Profile struct {
	User        *models.Donor              `json:"user"`
	Donations   []*donationModels.Donation `json:"donations"`
	Eligibility eligibility.Status         `json:"eligibility"`
}

type Service struct {
	uow             storage.UnitOfWork
	evaluator       *eligibility.Evaluator
	cache           cache.Cache
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	defaultPageSize int
	maxPageSize     int
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

func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPageSizes sets the default page size and the clamp ceiling.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
		if defaultSize > 0 {
			s.defaultPageSize = min(defaultSize, s.maxPageSize)
		}
	}
}

func New(uow storage.UnitOfWork, evaluator *eligibility.Evaluator, opts ...Option) (*Service, error) {
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if evaluator == nil {
		return nil, errors.New("eligibility evaluator is required")
	}
	svc := &Service{
		uow:             uow,
		evaluator:       evaluator,
		cache:           cache.Noop{},
		logger:          slog.Default(),
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates the caller's donor record. Identity comes from ctx only.
// Registering again with the same identity returns the stored profile and
// created=false.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (donor *models.Donor, created bool, err error) {
	userID := requestcontext.UserID(ctx)
	phone := requestcontext.PhoneNumber(ctx)
	if userID == "" || phone == "" {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "verified identity with phone number required")
	}
	now := requestcontext.Now(ctx)

	err = s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		existing, err := st.Donors.FindByID(ctx, userID)
		if err == nil {
			donor = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
		}

		if _, err := st.Donors.FindByPhone(ctx, phone); err == nil {
			return dErrors.New(dErrors.CodeConflict, "phone number is already registered")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check phone number")
		}

		d, err := models.NewDonor(userID, phone, req.Name, req.ParsedBloodGroup(), req.Location(),
			models.ContactVisibility(req.ContactVisibility), models.ProfileVisibility(req.ProfileVisibility), now)
		if err != nil {
			return err
		}
		if err := st.Donors.Create(ctx, d); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "donor is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register donor")
		}
		donor = d
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return donor, false, nil
	}

	s.metrics.IncrementRegistered()
	s.logger.InfoContext(ctx, "donor registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"blood_group", donor.BloodGroup,
	)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionDonorRegistered,
		UserID:    userID,
		Subject:   userID,
		Timestamp: now,
	})
	return donor, true, nil
}

// Profile returns the donor with recent donations and derived eligibility.
func (s *Service) Profile(ctx context.Context, donorID string) (*Profile, error) {
	st := s.uow.Stores()
	donor, err := s.load(ctx, st, donorID)
	if err != nil {
		return nil, err
	}
	donations, err := st.Donations.ListByDonor(ctx, donorID, profileHistoryLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donations")
	}
	if donations == nil {
		donations = []*donationModels.Donation{}
	}
	return &Profile{
		User:        donor,
		Donations:   donations,
		Eligibility: s.evaluator.Evaluate(donor, requestcontext.Now(ctx)),
	}, nil
}

// UpdateProfile applies a validated partial update.
func (s *Service) UpdateProfile(ctx context.Context, donorID string, req *models.UpdateProfileRequest) (*models.Donor, error) {
	now := requestcontext.Now(ctx)
	var updated *models.Donor
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		donor, err := s.load(ctx, st, donorID)
		if err != nil {
			return err
		}
		donor.ApplyProfileUpdate(req, now)
		if err := st.Donors.Update(ctx, donor); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
		}
		updated = donor
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionProfileUpdated,
		UserID:    donorID,
		Subject:   donorID,
		Timestamp: now,
	})
	return updated, nil
}

// DonationStatus derives eligibility from the last donation only.
func (s *Service) DonationStatus(ctx context.Context, donorID string) (eligibility.Status, error) {
	donor, err := s.load(ctx, s.uow.Stores(), donorID)
	if err != nil {
		return eligibility.Status{}, err
	}
	return s.evaluator.Evaluate(donor, requestcontext.Now(ctx)), nil
}

// Search finds active, eligible donors compatible with the requested group.
// Unauthenticated callers see only public profiles and publicly visible
// contacts. Results may come from a short-lived cache keyed by the full query
// and the auth flag.
func (s *Service) Search(ctx context.Context, q models.SearchQuery, authenticated bool) (*models.SearchPage, error) {
	q = s.clamp(q)
	key := q.CacheKey(authenticated)
	if page, ok := s.cache.Get(ctx, key); ok {
		s.metrics.IncrementSearch(true)
		return page, nil
	}
	s.metrics.IncrementSearch(false)

	ctx, span := tracer.Start(ctx, "donor.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("search.authenticated", authenticated),
		attribute.Int("search.page", q.Page),
		attribute.Int("search.limit", q.Limit),
	)
	start := time.Now()

	c := s.criteria(q, authenticated, requestcontext.Now(ctx))
	st := s.uow.Stores()
	donors, err := st.Donors.Search(ctx, c)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search donors")
	}
	total, err := st.Donors.Count(ctx, c)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count donors")
	}

	views := make([]models.DonorView, 0, len(donors))
	for _, d := range donors {
		views = append(views, models.NewDonorView(d, authenticated))
	}
	page := models.NewSearchPage(views, total, q.Page, q.Limit)

	span.SetAttributes(attribute.Int("search.total", total))
	s.metrics.ObserveSearchDuration(time.Since(start).Seconds())
	s.cache.Set(ctx, key, page)
	return page, nil
}

func (s *Service) clamp(q models.SearchQuery) models.SearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if maxPage := math.MaxInt / s.maxPageSize; q.Page > maxPage {
		q.Page = maxPage
	}
	switch {
	case q.Limit <= 0:
		q.Limit = s.defaultPageSize
	case q.Limit > s.maxPageSize:
		q.Limit = s.maxPageSize
	}
	return q
}

func (s *Service) criteria(q models.SearchQuery, authenticated bool, now time.Time) storage.DonorCriteria {
	c := storage.DonorCriteria{
		Area:                q.Area,
		City:                q.City,
		State:               q.State,
		Zone:                q.Zone,
		ProfileVisibilities: models.DiscoverableProfiles(authenticated),
		EligibleCutoff:      s.evaluator.Cutoff(now),
		Offset:              (q.Page - 1) * q.Limit,
		Limit:               q.Limit,
	}
	if q.BloodGroup != nil {
		c.Groups = compatibility.CompatibleDonorGroups(*q.BloodGroup)
	}
	return c
}

func (s *Service) load(ctx context.Context, st storage.Stores, donorID string) (*models.Donor, error) {
	donor, err := st.Donors.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
	}
	return donor, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, event)
}
