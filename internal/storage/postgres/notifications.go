package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	donationModels "donorlink/internal/donation/models"
	notificationModels "donorlink/internal/notification/models"
)

// insertChunk keeps each multi-row insert well under the 65535 parameter limit.
const insertChunk = 1000

const notificationColumns = `id, blood_request_id, donor_id, sent_at, read_at, responded_at, response, delivery_status`

type NotificationStore struct {
	conn
}

func (s *NotificationStore) InsertBatch(ctx context.Context, batch []*notificationModels.Notification) ([]*notificationModels.Notification, error) {
	inserted := make([]*notificationModels.Notification, 0, len(batch))
	for start := 0; start < len(batch); start += insertChunk {
		chunk := batch[start:min(start+insertChunk, len(batch))]
		ids, err := s.insertChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, n := range chunk {
			if _, ok := ids[n.ID]; ok {
				inserted = append(inserted, n)
			}
		}
	}
	return inserted, nil
}

func (s *NotificationStore) insertChunk(ctx context.Context, chunk []*notificationModels.Notification) (map[string]struct{}, error) {
	var (
		values strings.Builder
		args   = make([]any, 0, len(chunk)*5)
	)
	for i, n := range chunk {
		if i > 0 {
			values.WriteString(", ")
		}
		base := len(args)
		values.WriteString("(")
		for j := 1; j <= 5; j++ {
			if j > 1 {
				values.WriteString(", ")
			}
			values.WriteString("$" + strconv.Itoa(base+j))
		}
		values.WriteString(")")
		args = append(args, n.ID, n.BloodRequestID, n.DonorID, n.SentAt, string(n.Status))
	}

	query := `
		INSERT INTO notifications (id, blood_request_id, donor_id, sent_at, delivery_status)
		VALUES ` + values.String() + `
		ON CONFLICT (blood_request_id, donor_id) DO NOTHING
		RETURNING id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert notifications: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{}, len(chunk))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notification id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification ids: %w", err)
	}
	return ids, nil
}

func (s *NotificationStore) FindByID(ctx context.Context, id string) (*notificationModels.Notification, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(res, "mark notification read")
}

func (s *NotificationStore) Respond(ctx context.Context, id string, resp notificationModels.Response, at time.Time) error {
	query := `
		UPDATE notifications SET
			responded_at = $2,
			response = $3,
			read_at = COALESCE(read_at, $2),
			delivery_status = 'RESPONDED'
		WHERE id = $1 AND responded_at IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, at, string(resp))
	if err != nil {
		return fmt.Errorf("respond to notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("respond to notification rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	return s.missingOrState(ctx, "notifications", id)
}

func (s *NotificationStore) ListByDonor(ctx context.Context, donorID string, limit int) ([]*notificationModels.Notification, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE donor_id = $1 ORDER BY sent_at DESC, id LIMIT $2`,
		donorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []*notificationModels.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func scanNotification(row rowScanner) (*notificationModels.Notification, error) {
	var (
		n           notificationModels.Notification
		readAt      sql.NullTime
		respondedAt sql.NullTime
		response    sql.NullString
		status      string
	)
	if err := row.Scan(&n.ID, &n.BloodRequestID, &n.DonorID, &n.SentAt, &readAt, &respondedAt, &response, &status); err != nil {
		return nil, err
	}
	n.ReadAt = nullTime(readAt)
	n.RespondedAt = nullTime(respondedAt)
	if response.Valid {
		r := notificationModels.Response(response.String)
		n.Response = &r
	}
	n.Status = notificationModels.DeliveryStatus(status)
	return &n, nil
}

type DonationStore struct {
	conn
}

func (s *DonationStore) Append(ctx context.Context, d *donationModels.Donation) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO donations (id, donor_id, donated_at, location, notes) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.DonorID, d.DonatedAt, d.Location, d.Notes)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *DonationStore) ListByDonor(ctx context.Context, donorID string, limit int) ([]*donationModels.Donation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id, donor_id, donated_at, location, notes FROM donations WHERE donor_id = $1 ORDER BY donated_at DESC LIMIT $2`,
		donorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	out := []*donationModels.Donation{}
	for rows.Next() {
		var (
			d        donationModels.Donation
			location sql.NullString
			notes    sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.DonorID, &d.DonatedAt, &location, &notes); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		d.Location = nullString(location)
		d.Notes = nullString(notes)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

type SubscriptionStore struct {
	conn
}

func (s *SubscriptionStore) Upsert(ctx context.Context, sub *notificationModels.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.Platform, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) ListByUsers(ctx context.Context, userIDs []string) ([]*notificationModels.PushSubscription, error) {
	out := []*notificationModels.PushSubscription{}
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, platform, created_at, updated_at
		FROM push_subscriptions WHERE user_id = ANY($1) ORDER BY endpoint`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sub notificationModels.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.Platform, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		out = append(out, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return out, nil
}
