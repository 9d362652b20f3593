package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardlink/wardlink/internal/platform/db"
)

var ErrNotFound = errors.New("profile not found")

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

func (r *repoPG) Upsert(ctx context.Context, p *Profile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (uid, email, display_name, role, institution_id, institution_name, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			institution_id = EXCLUDED.institution_id,
			institution_name = EXCLUDED.institution_name,
			last_login_at = NOW()`,
		p.UID, p.Email, p.DisplayName, p.Role, p.InstitutionID, p.InstitutionName,
	)
	return err
}

func (r *repoPG) GetByUID(ctx context.Context, uid string) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT uid, email, display_name, role, institution_id, institution_name, last_login_at
		FROM users WHERE uid = $1`, uid).
		Scan(&p.UID, &p.Email, &p.DisplayName, &p.Role, &p.InstitutionID, &p.InstitutionName, &p.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: uid %s", ErrNotFound, uid)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ClearInstitution(ctx context.Context, uid string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET institution_id = NULL, institution_name = NULL, role = ''
		WHERE uid = $1`, uid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
