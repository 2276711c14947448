package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"donorlink/internal/notification/handler/mocks"
	"donorlink/internal/notification/models"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type NotificationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestNotificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(NotificationHandlerSuite))
}

func (s *NotificationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)

	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *NotificationHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(requestcontext.WithIdentity(req.Context(), "donor-1", "+8801700000000"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *NotificationHandlerSuite) TestInbox() {
	s.service.EXPECT().Inbox(gomock.Any(), "donor-1").Return([]models.InboxEntry{
		{Notification: models.NewNotification("n1", "r1", "donor-1", time.Now())},
	}, nil)

	w := s.do(http.MethodGet, "/me/notifications", "")
	s.Equal(http.StatusOK, w.Code)

	var resp map[string][]map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp["notifications"], 1)
	s.Equal("n1", resp["notifications"][0]["id"])
	s.Equal("SENT", resp["notifications"][0]["deliveryStatus"])
}

func (s *NotificationHandlerSuite) TestMarkReadUsesPathID() {
	s.service.EXPECT().MarkRead(gomock.Any(), "donor-1", "n1").
		Return(models.NewNotification("n1", "r1", "donor-1", time.Now()), nil)
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/notifications/n1/read", "").Code)
}

func (s *NotificationHandlerSuite) TestMarkReadForbidden() {
	s.service.EXPECT().MarkRead(gomock.Any(), "donor-1", "n2").
		Return(nil, dErrors.New(dErrors.CodeForbidden, "notification belongs to another donor"))
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/notifications/n2/read", "").Code)
}

func (s *NotificationHandlerSuite) TestRespond() {
	s.Run("parses response case-insensitively", func() {
		s.service.EXPECT().Respond(gomock.Any(), "donor-1", "n1", models.ResponseAccepted).
			Return(models.NewNotification("n1", "r1", "donor-1", time.Now()), nil)
		s.Equal(http.StatusOK, s.do(http.MethodPost, "/notifications/n1/respond", `{"response":"accepted"}`).Code)
	})

	s.Run("invalid response never reaches the service", func() {
		w := s.do(http.MethodPost, "/notifications/n1/respond", `{"response":"maybe"}`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "validation_error")
	})

	s.Run("second response conflicts", func() {
		s.service.EXPECT().Respond(gomock.Any(), "donor-1", "n1", models.ResponseDeclined).
			Return(nil, dErrors.New(dErrors.CodeAlreadyResponded, "notification has already been responded to"))
		w := s.do(http.MethodPost, "/notifications/n1/respond", `{"response":"DECLINED"}`)
		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), "already_responded")
	})
}

func (s *NotificationHandlerSuite) TestSubscribe() {
	s.service.EXPECT().Subscribe(gomock.Any(), "donor-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req *models.SubscribeRequest) (*models.PushSubscription, error) {
			s.Equal("https://push.example/abc", req.Endpoint)
			return &models.PushSubscription{ID: "sub-1", Platform: "Chrome on Linux"}, nil
		})

	body := `{"endpoint":"https://push.example/abc","expirationTime":null,"keys":{"p256dh":"k","auth":"a"}}`
	w := s.do(http.MethodPost, "/me/push-subscriptions", body)
	s.Equal(http.StatusCreated, w.Code)
	s.Contains(w.Body.String(), "sub-1")

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/me/push-subscriptions", `{"endpoint":"http://insecure"}`).Code)
}
