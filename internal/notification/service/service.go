// Package service manages the notification lifecycle after fan-out: the donor
// inbox, read and respond transitions, and push subscriptions.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"donorlink/internal/audit"
	"donorlink/internal/notification/metrics"
	"donorlink/internal/notification/models"
	"donorlink/internal/notification/push"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/sentinel"
	"donorlink/pkg/requestcontext"
)

const DefaultInboxLimit = 50

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Pusher accepts push jobs without blocking.
type Pusher interface {
	Enqueue(ctx context.Context, jobs ...push.Job) int
}

type Service struct {
	uow            storage.UnitOfWork
	pusher         Pusher
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

// Inbox lists the donor's most recent notifications with their requests.
// Notifications whose request no longer exists are left out.
func (s *Service) Inbox(ctx context.Context, donorID string) ([]models.InboxEntry, error) {
	st := s.uow.Stores()
	list, err := st.Notifications.ListByDonor(ctx, donorID, DefaultInboxLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	if len(list) == 0 {
		return []models.InboxEntry{}, nil
	}

	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.BloodRequestID)
	}
	requests, err := st.Requests.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blood requests")
	}

	entries := make([]models.InboxEntry, 0, len(list))
	for _, n := range list {
		req, ok := requests[n.BloodRequestID]
		if !ok {
			continue
		}
		entries = append(entries, models.InboxEntry{Notification: n, BloodRequest: req})
	}
	return entries, nil
}

// MarkRead stamps read_at on the caller's own notification. Repeating it keeps
// the first timestamp.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	now := requestcontext.Now(ctx)
	var updated *models.Notification
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		n, err := s.loadOwned(ctx, st, userID, notificationID)
		if err != nil {
			return err
		}
		if err := st.Notifications.MarkRead(ctx, n.ID, now); err != nil {
			return translate(err, "failed to mark notification read")
		}
		n.ApplyRead(now)
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRead()
	s.emit(ctx, audit.Event{
		Action:    audit.ActionNotificationRead,
		UserID:    userID,
		Subject:   updated.ID,
		Timestamp: now,
	})
	return updated, nil
}

// Respond records the donor's final answer. A second answer is rejected with
// already_responded. An ACCEPTED answer pushes a message to the requester.
func (s *Service) Respond(ctx context.Context, userID, notificationID string, resp models.Response) (*models.Notification, error) {
	if !resp.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "response must be ACCEPTED or DECLINED")
	}
	now := requestcontext.Now(ctx)

	var (
		updated *models.Notification
		request *requestModels.BloodRequest
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		n, err := s.loadOwned(ctx, st, userID, notificationID)
		if err != nil {
			return err
		}
		if err := n.CanRespond(); err != nil {
			return err
		}
		if err := st.Notifications.Respond(ctx, n.ID, resp, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeAlreadyResponded, "notification has already been responded to")
			}
			return translate(err, "failed to record response")
		}
		n.ApplyResponse(resp, now)
		updated = n

		if resp == models.ResponseAccepted {
			request, err = st.Requests.FindByID(ctx, n.BloodRequestID)
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blood request")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementResponse(string(resp))
	s.logger.InfoContext(ctx, "notification responded",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"notification_id", updated.ID,
		"response", resp,
	)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionNotificationResponded,
		UserID:    userID,
		Subject:   updated.ID,
		Reason:    string(resp),
		Timestamp: now,
	})
	if request != nil && s.pusher != nil {
		if job, ok := push.AcceptedJob(request, updated); ok {
			s.pusher.Enqueue(ctx, job)
		}
	}
	return updated, nil
}

// Subscribe registers a browser push endpoint for the caller. The endpoint is
// the identity of a subscription, so re-subscribing refreshes its keys.
func (s *Service) Subscribe(ctx context.Context, userID string, req *models.SubscribeRequest) (*models.PushSubscription, error) {
	now := requestcontext.Now(ctx)
	sub := &models.PushSubscription{
		ID:        s.newID(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		Platform:  PlatformLabel(requestcontext.UserAgent(ctx)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.uow.Stores().Subscriptions.Upsert(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save push subscription")
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionPushSubscribed,
		UserID:    userID,
		Subject:   sub.ID,
		Reason:    sub.Platform,
		Timestamp: now,
	})
	return sub, nil
}

func (s *Service) loadOwned(ctx context.Context, st storage.Stores, userID, id string) (*models.Notification, error) {
	n, err := st.Notifications.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load notification")
	}
	if !n.IsRecipient(userID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "notification belongs to another donor")
	}
	return n, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
