package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const userColumns = `uid, email, display_name, role, institution_id, institution_name,
	user_id, password, allowed_dashboards, added_by, added_at, enabled`

// lockPrefix serializes code allocation for one prefix. The advisory lock is
// transaction-scoped, so it releases on commit or rollback.
func lockPrefix(ctx context.Context, q queryable, prefix string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix)
	return err
}

// issuedCodes returns every code under the prefix, from both access grants
// and institution admin credentials; the two share one sequence per prefix.
func (r *repoPG) issuedCodes(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT user_id FROM approved_users WHERE user_id LIKE $1 || '%'
		UNION
		SELECT user_id FROM institutions WHERE user_id LIKE $1 || '%'`,
		prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code *string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		if code != nil {
			codes = append(codes, *code)
		}
	}
	return codes, rows.Err()
}

func (r *repoPG) ProvisionUser(ctx context.Context, u *ApprovedUser, prefix string) error {
	return db.InTx(ctx, r.pool, func(txCtx context.Context) error {
		if err := lockPrefix(txCtx, r.conn(txCtx), prefix); err != nil {
			return err
		}
		codes, err := r.issuedCodes(txCtx, prefix)
		if err != nil {
			return err
		}
		code := NextCode(codes, prefix)
		u.UserID = &code
		return r.createUser(txCtx, u)
	})
}

func (r *repoPG) AllocateCode(ctx context.Context, prefix string) (string, error) {
	var code string
	err := db.InTx(ctx, r.pool, func(txCtx context.Context) error {
		if err := lockPrefix(txCtx, r.conn(txCtx), prefix); err != nil {
			return err
		}
		codes, err := r.issuedCodes(txCtx, prefix)
		if err != nil {
			return err
		}
		code = NextCode(codes, prefix)
		return nil
	})
	return code, err
}

func (r *repoPG) createUser(ctx context.Context, u *ApprovedUser) error {
	dashboards, err := json.Marshal(u.AllowedDashboards)
	if err != nil {
		return fmt.Errorf("marshal allowed dashboards: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO approved_users (
			uid, email, display_name, role, institution_id, institution_name,
			user_id, password, allowed_dashboards, added_by, added_at, enabled
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, NOW(), $11
		)`,
		u.UID, u.Email, u.DisplayName, u.Role, u.InstitutionID, u.InstitutionName,
		u.UserID, u.Password, dashboards, u.AddedBy, u.Enabled,
	)
	return err
}

func (r *repoPG) GetUserByUID(ctx context.Context, uid string) (*ApprovedUser, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM approved_users WHERE uid = $1`, uid)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: uid %s", ErrNotFound, uid)
	}
	return u, err
}

func (r *repoPG) GetUserByCode(ctx context.Context, userCode string) (*ApprovedUser, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM approved_users WHERE user_id = $1`, userCode)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, userCode)
	}
	return u, err
}

func (r *repoPG) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]*ApprovedUser, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM approved_users WHERE institution_id = $1 ORDER BY added_at`,
		institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*ApprovedUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *repoPG) SetEnabled(ctx context.Context, uid string, enabled bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE approved_users SET enabled = $2 WHERE uid = $1`, uid, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: uid %s", ErrNotFound, uid)
	}
	return nil
}

func (r *repoPG) SetPassword(ctx context.Context, uid string, password string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE approved_users SET password = $2 WHERE uid = $1`, uid, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: uid %s", ErrNotFound, uid)
	}
	return nil
}

func (r *repoPG) DeleteUser(ctx context.Context, uid string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM approved_users WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: uid %s", ErrNotFound, uid)
	}
	return nil
}

func (r *repoPG) ListUIDsByInstitution(ctx context.Context, institutionID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT uid FROM approved_users WHERE institution_id = $1`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

func (r *repoPG) DeleteByInstitution(ctx context.Context, institutionID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM approved_users WHERE institution_id = $1`, institutionID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) CreateResetRequest(ctx context.Context, req *PasswordResetRequest) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO password_reset_requests (id, user_code, status, requested_at)
		VALUES ($1, $2, $3, NOW())`,
		req.ID, req.UserCode, req.Status)
	return err
}

func (r *repoPG) HasPendingReset(ctx context.Context, userCode string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM password_reset_requests
			WHERE user_code = $1 AND status = $2
		)`, userCode, ResetPending).Scan(&exists)
	return exists, err
}

func (r *repoPG) GetResetRequest(ctx context.Context, id uuid.UUID) (*PasswordResetRequest, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_code, status, requested_at, resolved_at, resolved_by, new_password
		FROM password_reset_requests WHERE id = $1`, id)
	req, err := scanResetRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: reset request %s", ErrNotFound, id)
	}
	return req, err
}

func (r *repoPG) ListResetRequests(ctx context.Context, status ResetStatus) ([]*PasswordResetRequest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, user_code, status, requested_at, resolved_at, resolved_by, new_password
		FROM password_reset_requests WHERE status = $1 ORDER BY requested_at`,
		status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*PasswordResetRequest
	for rows.Next() {
		req, err := scanResetRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *repoPG) ResolveResetRequest(ctx context.Context, req *PasswordResetRequest) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE password_reset_requests SET
			status = $2, resolved_at = $3, resolved_by = $4, new_password = $5
		WHERE id = $1 AND status = $6`,
		req.ID, req.Status, req.ResolvedAt, req.ResolvedBy, req.NewPassword, ResetPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: reset request %s", ErrNotFound, req.ID)
	}
	return nil
}

func scanUser(row pgx.Row) (*ApprovedUser, error) {
	var u ApprovedUser
	var dashboards []byte

	err := row.Scan(
		&u.UID, &u.Email, &u.DisplayName, &u.Role, &u.InstitutionID, &u.InstitutionName,
		&u.UserID, &u.Password, &dashboards, &u.AddedBy, &u.AddedAt, &u.Enabled,
	)
	if err != nil {
		return nil, err
	}

	if len(dashboards) > 0 {
		if err := json.Unmarshal(dashboards, &u.AllowedDashboards); err != nil {
			return nil, fmt.Errorf("unmarshal allowed dashboards: %w", err)
		}
	}
	return &u, nil
}

func scanResetRequest(row pgx.Row) (*PasswordResetRequest, error) {
	var req PasswordResetRequest
	err := row.Scan(
		&req.ID, &req.UserCode, &req.Status, &req.RequestedAt,
		&req.ResolvedAt, &req.ResolvedBy, &req.NewPassword,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
