package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardlink/wardlink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const referralColumns = `id, from_institution_id, from_institution_name, from_unit,
	to_institution_id, to_institution_name, to_unit,
	patient_name, patient_age, patient_age_unit, patient_gender, patient_admission_date,
	priority, status, status_updates, is_read,
	referral_date, created_at, last_updated_at,
	referred_by, referred_by_role, details, referral_letter, accepted_by, accepted_at`

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	// Timestamps are set here rather than by the store so the struct handed
	// back to the caller matches the inserted row.
	now := time.Now()
	ref.CreatedAt = now
	ref.LastUpdatedAt = now

	trail, err := json.Marshal(ref.StatusUpdates)
	if err != nil {
		return fmt.Errorf("marshal status updates: %w", err)
	}
	details, err := json.Marshal(ref.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO referrals (
			id, from_institution_id, from_institution_name, from_unit,
			to_institution_id, to_institution_name, to_unit,
			patient_name, patient_age, patient_age_unit, patient_gender, patient_admission_date,
			priority, status, status_updates, is_read,
			referral_date, created_at, last_updated_at,
			referred_by, referred_by_role, details, referral_letter
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23
		)`,
		ref.ID, ref.FromInstitutionID, ref.FromInstitutionName, ref.FromUnit,
		ref.ToInstitutionID, ref.ToInstitutionName, ref.ToUnit,
		ref.PatientName, ref.PatientAge, ref.PatientAgeUnit, ref.PatientGender, ref.PatientAdmissionDate,
		ref.Priority, ref.Status, trail, ref.IsRead,
		ref.ReferralDate, ref.CreatedAt, ref.LastUpdatedAt,
		ref.ReferredBy, ref.ReferredByRole, details, ref.ReferralLetter,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id)
	ref, err := scanReferral(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ref, err
}

// UpdateStatus writes status, trail, and acceptance fields in one UPDATE so
// the trail invariant holds for every reader.
func (r *repoPG) UpdateStatus(ctx context.Context, ref *Referral) error {
	trail, err := json.Marshal(ref.StatusUpdates)
	if err != nil {
		return fmt.Errorf("marshal status updates: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET
			status = $2, status_updates = $3,
			accepted_by = $4, accepted_at = $5,
			last_updated_at = $6
		WHERE id = $1`,
		ref.ID, ref.Status, trail, ref.AcceptedBy, ref.AcceptedAt, ref.LastUpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref.ID)
	}
	return nil
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE referrals SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *repoPG) ListBySender(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	return r.list(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE from_institution_id = $1 ORDER BY last_updated_at DESC`,
		institutionID)
}

func (r *repoPG) ListByRecipient(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	return r.list(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE to_institution_id = $1 ORDER BY last_updated_at DESC`,
		institutionID)
}

func (r *repoPG) CountUnread(ctx context.Context, institutionID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE to_institution_id = $1 AND is_read = FALSE`,
		institutionID).Scan(&count)
	return count, err
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Referral, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	return result, rows.Err()
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	var trail, details []byte

	err := row.Scan(
		&ref.ID, &ref.FromInstitutionID, &ref.FromInstitutionName, &ref.FromUnit,
		&ref.ToInstitutionID, &ref.ToInstitutionName, &ref.ToUnit,
		&ref.PatientName, &ref.PatientAge, &ref.PatientAgeUnit, &ref.PatientGender, &ref.PatientAdmissionDate,
		&ref.Priority, &ref.Status, &trail, &ref.IsRead,
		&ref.ReferralDate, &ref.CreatedAt, &ref.LastUpdatedAt,
		&ref.ReferredBy, &ref.ReferredByRole, &details, &ref.ReferralLetter, &ref.AcceptedBy, &ref.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(trail) > 0 {
		if err := json.Unmarshal(trail, &ref.StatusUpdates); err != nil {
			return nil, fmt.Errorf("unmarshal status updates: %w", err)
		}
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &ref.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return &ref, nil
}
