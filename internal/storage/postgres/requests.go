package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	requestModels "donorlink/internal/request/models"
	"donorlink/pkg/domain"
	"donorlink/pkg/platform/sentinel"
)

const requestColumns = `id, requester_id, requester_name, requester_phone, blood_group, urgency, location,
	hospital, message, requester_city, requester_state, notify_radius_km, notify_all, status,
	created_at, completed_at, completed_by_donor_id`

type RequestStore struct {
	conn
}

func (s *RequestStore) Create(ctx context.Context, r *requestModels.BloodRequest) error {
	var hospital []byte
	if r.Hospital != nil {
		var err error
		if hospital, err = json.Marshal(r.Hospital); err != nil {
			return fmt.Errorf("marshal hospital: %w", err)
		}
	}
	query := `
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		r.ID,
		r.RequesterID,
		r.RequesterName,
		r.RequesterPhone,
		string(r.BloodGroup),
		string(r.Urgency),
		r.Location,
		hospital,
		r.Message,
		r.RequesterCity,
		r.RequesterState,
		r.NotifyRadiusKm,
		r.NotifyAll,
		string(r.Status),
		r.CreatedAt,
		r.CompletedAt,
		r.CompletedByDonorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert blood request: %w", err)
	}
	return nil
}

func (s *RequestStore) FindByID(ctx context.Context, id string) (*requestModels.BloodRequest, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+requestColumns+` FROM blood_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *RequestStore) FindByIDs(ctx context.Context, ids []string) (map[string]*requestModels.BloodRequest, error) {
	out := make(map[string]*requestModels.BloodRequest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+requestColumns+` FROM blood_requests WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find blood requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood request: %w", err)
		}
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blood requests: %w", err)
	}
	return out, nil
}

// Complete is a conditional update, so two racing completions cannot both win.
func (s *RequestStore) Complete(ctx context.Context, id string, donorID *string, at time.Time) error {
	query := `
		UPDATE blood_requests
		SET status = 'COMPLETED', completed_at = $2, completed_by_donor_id = $3
		WHERE id = $1 AND status = 'ACTIVE'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, at, donorID)
	if err != nil {
		return fmt.Errorf("complete blood request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete blood request rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	return s.missingOrState(ctx, "blood_requests", id)
}

func (s *RequestStore) ListActive(ctx context.Context, since time.Time, limit int) ([]*requestModels.BloodRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE status = 'ACTIVE' AND created_at >= $1
		ORDER BY CASE urgency
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1
		END DESC, created_at DESC
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list active blood requests: %w", err)
	}
	defer rows.Close()

	out := []*requestModels.BloodRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blood requests: %w", err)
	}
	return out, nil
}

// missingOrState distinguishes a missing row from one that failed a
// conditional update.
func (c conn) missingOrState(ctx context.Context, table, id string) error {
	var exists bool
	err := c.execer(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func scanRequest(row rowScanner) (*requestModels.BloodRequest, error) {
	var (
		r           requestModels.BloodRequest
		requesterID sql.NullString
		group       string
		urgency     string
		status      string
		hospital    []byte
		completedAt sql.NullTime
		completedBy sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&requesterID,
		&r.RequesterName,
		&r.RequesterPhone,
		&group,
		&urgency,
		&r.Location,
		&hospital,
		&r.Message,
		&r.RequesterCity,
		&r.RequesterState,
		&r.NotifyRadiusKm,
		&r.NotifyAll,
		&status,
		&r.CreatedAt,
		&completedAt,
		&completedBy,
	); err != nil {
		return nil, err
	}
	if len(hospital) > 0 {
		var h requestModels.Hospital
		if err := json.Unmarshal(hospital, &h); err != nil {
			return nil, fmt.Errorf("unmarshal hospital: %w", err)
		}
		r.Hospital = &h
	}
	r.RequesterID = nullString(requesterID)
	r.BloodGroup = domain.BloodGroup(group)
	r.Urgency = requestModels.Urgency(urgency)
	r.Status = requestModels.Status(status)
	r.CompletedAt = nullTime(completedAt)
	r.CompletedByDonorID = nullString(completedBy)
	return &r, nil
}
