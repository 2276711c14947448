// Package service records donations and moves donors into cooldown.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"donorlink/internal/audit"
	"donorlink/internal/donation/metrics"
	"donorlink/internal/donation/models"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/sentinel"
	"donorlink/pkg/requestcontext"
)

const DefaultHistoryLimit = 50

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	uow            storage.UnitOfWork
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	newID          func() string
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

// WithIDGenerator overrides uuid generation, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(uow storage.UnitOfWork, opts ...Option) (*Service, error) {
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	svc := &Service{
		uow:    uow,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Record appends a donation and sets the donor's last donation in one
// transaction. Each call appends a new row; it is not idempotent.
func (s *Service) Record(ctx context.Context, donorID string, details models.Details) (*models.Donation, error) {
	now := requestcontext.Now(ctx)
	var donation *models.Donation
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		var err error
		donation, err = s.RecordInTx(ctx, st, donorID, details, now)
		return err
	})
	if err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.afterRecord(ctx, donation)
	return donation, nil
}

// RecordInTx runs the donation transition against stores already inside a
// transaction. Callers that compose it, such as request completion, must call
// AfterCommit once their transaction commits.
func (s *Service) RecordInTx(ctx context.Context, st storage.Stores, donorID string, details models.Details, now time.Time) (*models.Donation, error) {
	donor, err := st.Donors.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
	}
	if err := donor.CanRecordDonation(); err != nil {
		return nil, err
	}

	donation := &models.Donation{
		ID:        s.newID(),
		DonorID:   donorID,
		DonatedAt: now,
		Location:  details.Location,
		Notes:     details.Notes,
	}
	if err := st.Donations.Append(ctx, donation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record donation")
	}
	if err := st.Donors.SetLastDonation(ctx, donorID, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start donation cooldown")
	}
	return donation, nil
}

// AfterCommit emits the side effects of a committed RecordInTx.
func (s *Service) AfterCommit(ctx context.Context, donation *models.Donation) {
	s.afterRecord(ctx, donation)
}

func (s *Service) afterRecord(ctx context.Context, donation *models.Donation) {
	s.metrics.IncrementRecorded()
	s.logger.InfoContext(ctx, "donation recorded",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", donation.DonorID,
		"donation_id", donation.ID,
	)
	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action:    audit.ActionDonationRecorded,
			UserID:    requestcontext.UserID(ctx),
			Subject:   donation.DonorID,
			Timestamp: donation.DonatedAt,
		})
	}
}

// History lists a donor's donations, newest first.
func (s *Service) History(ctx context.Context, donorID string, limit int) ([]*models.Donation, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	list, err := s.uow.Stores().Donations.ListByDonor(ctx, donorID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donations")
	}
	return list, nil
}
