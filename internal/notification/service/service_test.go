package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"donorlink/internal/audit"
	"donorlink/internal/notification/models"
	"donorlink/internal/notification/push"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage/memory"
	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/requestcontext"
)

type recordingPusher struct {
	mu   sync.Mutex
	jobs []push.Job
}

func (p *recordingPusher) Enqueue(_ context.Context, jobs ...push.Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, jobs...)
	return len(jobs)
}

type NotificationServiceSuite struct {
	suite.Suite
	db      *memory.DB
	audit   *audit.InMemoryStore
	pusher  *recordingPusher
	service *Service
	now     time.Time
}

func TestNotificationServiceSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceSuite))
}

func (s *NotificationServiceSuite) SetupTest() {
	s.db = memory.New()
	s.audit = audit.NewInMemoryStore()
	s.pusher = &recordingPusher{}
	svc, err := New(s.db,
		WithAuditPublisher(audit.NewPublisher(s.audit)),
		WithPusher(s.pusher),
		WithIDGenerator(func() string { return "sub-1" }),
	)
	s.Require().NoError(err)
	s.service = svc
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	requester := "requester"
	bg := context.Background()
	s.Require().NoError(s.db.Stores().Requests.Create(bg, &requestModels.BloodRequest{
		ID: "r1", RequesterID: &requester, BloodGroup: domain.ONegative,
		Urgency: requestModels.UrgencyHigh, Status: requestModels.StatusActive, CreatedAt: s.now.Add(-time.Hour),
	}))
	_, err = s.db.Stores().Notifications.InsertBatch(bg, []*models.Notification{
		models.NewNotification("n1", "r1", "donor", s.now.Add(-time.Hour)),
		models.NewNotification("n2", "gone", "donor", s.now.Add(-2*time.Hour)),
	})
	s.Require().NoError(err)
}

func (s *NotificationServiceSuite) ctxAt(userID string, at time.Time) context.Context {
	return requestcontext.WithTime(requestcontext.WithUserID(context.Background(), userID), at)
}

func (s *NotificationServiceSuite) TestInboxJoinsRequests() {
	entries, err := s.service.Inbox(s.ctxAt("donor", s.now), "donor")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("n1", entries[0].ID)
	s.Equal("r1", entries[0].BloodRequest.ID)

	empty, err := s.service.Inbox(s.ctxAt("other", s.now), "other")
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *NotificationServiceSuite) TestMarkReadKeepsFirstTimestamp() {
	first, err := s.service.MarkRead(s.ctxAt("donor", s.now), "donor", "n1")
	s.Require().NoError(err)
	s.Require().NotNil(first.ReadAt)
	s.Equal(s.now, *first.ReadAt)

	second, err := s.service.MarkRead(s.ctxAt("donor", s.now.Add(time.Hour)), "donor", "n1")
	s.Require().NoError(err)
	s.Equal(s.now, *second.ReadAt)
}

func (s *NotificationServiceSuite) TestOnlyRecipientMayAct() {
	ctx := s.ctxAt("intruder", s.now)

	_, err := s.service.MarkRead(ctx, "intruder", "n1")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Respond(ctx, "intruder", "n1", models.ResponseAccepted)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.MarkRead(ctx, "intruder", "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	n, err := s.db.Stores().Notifications.FindByID(context.Background(), "n1")
	s.Require().NoError(err)
	s.Nil(n.ReadAt)
	s.Nil(n.Response)
}

func (s *NotificationServiceSuite) TestRespondBackfillsReadAndPushesRequester() {
	n, err := s.service.Respond(s.ctxAt("donor", s.now), "donor", "n1", models.ResponseAccepted)
	s.Require().NoError(err)
	s.Equal(models.DeliveryResponded, n.Status)
	s.Require().NotNil(n.ReadAt)
	s.Equal(*n.ReadAt, *n.RespondedAt)

	s.Require().Len(s.pusher.jobs, 1)
	s.Equal("requester", s.pusher.jobs[0].UserID)
	s.Equal(push.KindResponseAccepted, s.pusher.jobs[0].Payload.Kind)

	events, err := s.audit.ListByUser(context.Background(), "donor", 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionNotificationResponded, events[0].Action)
	s.Equal("ACCEPTED", events[0].Reason)
}

func (s *NotificationServiceSuite) TestReadThenRespondKeepsReadAt() {
	_, err := s.service.MarkRead(s.ctxAt("donor", s.now), "donor", "n1")
	s.Require().NoError(err)
	n, err := s.service.Respond(s.ctxAt("donor", s.now.Add(time.Minute)), "donor", "n1", models.ResponseDeclined)
	s.Require().NoError(err)
	s.Equal(s.now, *n.ReadAt)
	s.True(n.ReadAt.Before(*n.RespondedAt))
	s.Empty(s.pusher.jobs)
}

func (s *NotificationServiceSuite) TestSecondResponseIsRejected() {
	_, err := s.service.Respond(s.ctxAt("donor", s.now), "donor", "n1", models.ResponseDeclined)
	s.Require().NoError(err)

	_, err = s.service.Respond(s.ctxAt("donor", s.now.Add(time.Minute)), "donor", "n1", models.ResponseAccepted)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyResponded))

	n, err := s.db.Stores().Notifications.FindByID(context.Background(), "n1")
	s.Require().NoError(err)
	s.Equal(models.ResponseDeclined, *n.Response)
}

func (s *NotificationServiceSuite) TestConcurrentResponsesRecordOne() {
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Respond(s.ctxAt("donor", s.now), "donor", "n1", models.ResponseAccepted)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyResponded))
	}
	s.Equal(1, ok)
}

func (s *NotificationServiceSuite) TestRespondRejectsUnknownResponse() {
	_, err := s.service.Respond(s.ctxAt("donor", s.now), "donor", "n1", models.Response("MAYBE"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *NotificationServiceSuite) TestSubscribeLabelsPlatform() {
	ctx := requestcontext.WithClientMetadata(s.ctxAt("donor", s.now), "10.0.0.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36")
	req := &models.SubscribeRequest{Endpoint: "https://push.example/abc"}
	req.Keys.P256dh = "key"
	req.Keys.Auth = "auth"

	sub, err := s.service.Subscribe(ctx, "donor", req)
	s.Require().NoError(err)
	s.Equal("donor", sub.UserID)
	s.Contains(sub.Platform, "Chrome")
	s.Contains(sub.Platform, "mobile")

	subs, err := s.db.Stores().Subscriptions.ListByUsers(context.Background(), []string{"donor"})
	s.Require().NoError(err)
	s.Len(subs, 1)
}

func TestPlatformLabel(t *testing.T) {
	assert.Equal(t, "unknown", PlatformLabel(""))
	assert.Equal(t, "bot", PlatformLabel("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.Contains(t, PlatformLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"), "Safari")
}
