// Package push delivers best-effort browser push messages for notifications.
//
// Nothing here is on the request path: services enqueue jobs after their
// transaction commits and the Dispatcher delivers them in the background.
// A failed delivery is logged and counted, never returned to an HTTP caller.
package push

import (
	"context"
	"fmt"

	"donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
)

// Kind distinguishes the messages a user can receive.
type Kind string

const (
	KindBloodRequest     Kind = "blood_request"
	KindResponseAccepted Kind = "response_accepted"
)

// Payload is the message body rendered by the service worker.
type Payload struct {
	Kind           Kind   `json:"kind"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	URL            string `json:"url"`
	BloodRequestID string `json:"bloodRequestId"`
	NotificationID string `json:"notificationId,omitempty"`
}

// Job targets every subscription the user owns.
type Job struct {
	UserID  string
	Payload Payload
}

// Channel hands a payload to one subscription.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, sub *models.PushSubscription, payload Payload) error
}

// RequestJobs builds one job per newly notified donor.
func RequestJobs(req *requestModels.BloodRequest, notifications []*models.Notification) []Job {
	jobs := make([]Job, 0, len(notifications))
	for _, n := range notifications {
		jobs = append(jobs, Job{
			UserID: n.DonorID,
			Payload: Payload{
				Kind:           KindBloodRequest,
				Title:          fmt.Sprintf("%s blood needed", req.BloodGroup.Display()),
				Body:           fmt.Sprintf("%s urgency at %s", req.Urgency, req.Location),
				URL:            "/notifications",
				BloodRequestID: req.ID,
				NotificationID: n.ID,
			},
		})
	}
	return jobs
}

// AcceptedJob tells the requester that a donor accepted. Requests without a
// requester produce no job.
func AcceptedJob(req *requestModels.BloodRequest, n *models.Notification) (Job, bool) {
	if req.RequesterID == nil {
		return Job{}, false
	}
	return Job{
		UserID: *req.RequesterID,
		Payload: Payload{
			Kind:           KindResponseAccepted,
			Title:          "A donor accepted your request",
			Body:           fmt.Sprintf("A donor is available for your %s request", req.BloodGroup.Display()),
			URL:            "/blood-requests/" + req.ID,
			BloodRequestID: req.ID,
			NotificationID: n.ID,
		},
	}, true
}
