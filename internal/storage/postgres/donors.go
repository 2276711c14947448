package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"donorlink/internal/admission"
	donorModels "donorlink/internal/donor/models"
	"donorlink/internal/storage"
	"donorlink/pkg/domain"
	"donorlink/pkg/platform/sentinel"
)

const donorColumns = `id, phone_number, name, blood_group, area, city, state, zone, is_active,
	contact_visibility, profile_visibility, last_donation_at, created_at, updated_at`

type DonorStore struct {
	conn
}

func (s *DonorStore) Create(ctx context.Context, d *donorModels.Donor) error {
	query := `
		INSERT INTO donors (` + donorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		d.ID,
		d.PhoneNumber,
		d.Name,
		string(d.BloodGroup),
		d.Location.Area,
		d.Location.City,
		d.Location.State,
		d.Location.Zone,
		d.IsActive,
		string(d.ContactVisibility),
		string(d.ProfileVisibility),
		d.LastDonationAt,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert donor: %w", err)
	}
	return nil
}

func (s *DonorStore) FindByID(ctx context.Context, id string) (*donorModels.Donor, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = $1`, id)
	d, err := scanDonor(row)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (s *DonorStore) FindByPhone(ctx context.Context, phone string) (*donorModels.Donor, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE phone_number = $1`, phone)
	d, err := scanDonor(row)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// Update overwrites mutable fields. Phone number and blood group are not written.
func (s *DonorStore) Update(ctx context.Context, d *donorModels.Donor) error {
	query := `
		UPDATE donors SET
			name = $2,
			area = $3,
			city = $4,
			state = $5,
			zone = $6,
			is_active = $7,
			contact_visibility = $8,
			profile_visibility = $9,
			updated_at = $10
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Location.Area,
		d.Location.City,
		d.Location.State,
		d.Location.Zone,
		d.IsActive,
		string(d.ContactVisibility),
		string(d.ProfileVisibility),
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	return requireRow(res, "update donor")
}

func (s *DonorStore) SetLastDonation(ctx context.Context, id string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE donors SET last_donation_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set last donation: %w", err)
	}
	return requireRow(res, "set last donation")
}

func (s *DonorStore) Search(ctx context.Context, c storage.DonorCriteria) ([]*donorModels.Donor, error) {
	where, args := donorWhere(c)
	query := `SELECT ` + donorColumns + ` FROM donors WHERE ` + where +
		` ORDER BY last_donation_at ASC NULLS FIRST, created_at DESC, id ASC`
	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	defer rows.Close()

	donors := []*donorModels.Donor{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return donors, nil
}

func (s *DonorStore) Count(ctx context.Context, c storage.DonorCriteria) (int, error) {
	where, args := donorWhere(c)
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM donors WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count donors: %w", err)
	}
	return total, nil
}

// donorWhere renders c as SQL with numbered placeholders. It mirrors
// DonorCriteria.Matches.
func donorWhere(c storage.DonorCriteria) (string, []any) {
	var (
		clauses = []string{"is_active = TRUE"}
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(c.Groups) > 0 {
		groups := make([]string, len(c.Groups))
		for i, g := range c.Groups {
			groups[i] = string(g)
		}
		clauses = append(clauses, "blood_group = ANY("+arg(pq.Array(groups))+")")
	}
	if len(c.ProfileVisibilities) > 0 {
		vis := make([]string, len(c.ProfileVisibilities))
		for i, v := range c.ProfileVisibilities {
			vis[i] = string(v)
		}
		clauses = append(clauses, "profile_visibility = ANY("+arg(pq.Array(vis))+")")
	}
	if !c.EligibleCutoff.IsZero() {
		clauses = append(clauses, "(last_donation_at IS NULL OR last_donation_at <= "+arg(c.EligibleCutoff)+")")
	}
	if len(c.ExcludeIDs) > 0 {
		clauses = append(clauses, "NOT (id = ANY("+arg(pq.Array(c.ExcludeIDs))+"))")
	}
	if c.Area != "" {
		clauses = append(clauses, "area ILIKE "+arg(containsPattern(c.Area)))
	}
	if c.Zone != "" {
		clauses = append(clauses, "zone ILIKE "+arg(containsPattern(c.Zone)))
	}

	var city, state string
	if c.City != "" {
		city = "city ILIKE " + arg(containsPattern(c.City))
	}
	if c.State != "" {
		state = "state ILIKE " + arg(containsPattern(c.State))
	}
	switch {
	case c.MatchCityOrState && city != "" && state != "":
		clauses = append(clauses, "("+city+" OR "+state+")")
	default:
		for _, cl := range []string{city, state} {
			if cl != "" {
				clauses = append(clauses, cl)
			}
		}
	}
	return strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row rowScanner) (*donorModels.Donor, error) {
	var (
		d            donorModels.Donor
		group        string
		contact      string
		profile      string
		lastDonation sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.PhoneNumber,
		&d.Name,
		&group,
		&d.Location.Area,
		&d.Location.City,
		&d.Location.State,
		&d.Location.Zone,
		&d.IsActive,
		&contact,
		&profile,
		&lastDonation,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.BloodGroup = domain.BloodGroup(group)
	d.ContactVisibility = donorModels.ContactVisibility(contact)
	d.ProfileVisibility = donorModels.ProfileVisibility(profile)
	d.LastDonationAt = nullTime(lastDonation)
	return &d, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type ThrottleStore struct {
	conn
}

// Get locks the row when called inside a transaction so concurrent
// admissions for the same requester serialize.
func (s *ThrottleStore) Get(ctx context.Context, requesterID string) (*admission.ThrottleState, error) {
	query := `SELECT requester_id, request_count, window_reset_at FROM request_throttles WHERE requester_id = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	var st admission.ThrottleState
	err := s.execer(ctx).QueryRowContext(ctx, query, requesterID).Scan(&st.RequesterID, &st.RequestCount, &st.WindowResetAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *ThrottleStore) Put(ctx context.Context, st admission.ThrottleState) error {
	query := `
		INSERT INTO request_throttles (requester_id, request_count, window_reset_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (requester_id) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			window_reset_at = EXCLUDED.window_reset_at
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, st.RequesterID, st.RequestCount, st.WindowResetAt); err != nil {
		return fmt.Errorf("put request throttle: %w", err)
	}
	return nil
}
