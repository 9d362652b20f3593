package institution

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

const institutionColumns = `id, name, admin_email, user_id, password, facilities,
	address_line1, city, district, state, postal_code, country,
	institution_type, created_at, created_by`

func (r *repoPG) Create(ctx context.Context, inst *Institution) error {
	inst.ID = uuid.New()

	facilities, err := json.Marshal(inst.Facilities)
	if err != nil {
		return fmt.Errorf("marshal facilities: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO institutions (
			id, name, admin_email, user_id, password, facilities,
			address_line1, city, district, state, postal_code, country,
			institution_type, created_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, NOW(), $14
		)`,
		inst.ID, inst.Name, inst.AdminEmail, inst.UserID, inst.Password, facilities,
		inst.AddressLine1, inst.City, inst.District, inst.State, inst.PostalCode, inst.Country,
		inst.InstitutionType, inst.CreatedBy,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Institution, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+institutionColumns+` FROM institutions WHERE id = $1`, id)
	inst, err := scanInstitution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst, err
}

func (r *repoPG) Update(ctx context.Context, inst *Institution) error {
	facilities, err := json.Marshal(inst.Facilities)
	if err != nil {
		return fmt.Errorf("marshal facilities: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE institutions SET
			name = $2, admin_email = $3, facilities = $4,
			address_line1 = $5, city = $6, district = $7, state = $8,
			postal_code = $9, country = $10, institution_type = $11
		WHERE id = $1`,
		inst.ID, inst.Name, inst.AdminEmail, facilities,
		inst.AddressLine1, inst.City, inst.District, inst.State,
		inst.PostalCode, inst.Country, inst.InstitutionType,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, inst.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM institutions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Institution, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM institutions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+institutionColumns+` FROM institutions ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, inst)
	}
	return result, total, rows.Err()
}

func (r *repoPG) SetCredential(ctx context.Context, id uuid.UUID, userID, password string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE institutions SET user_id = $2, password = $3 WHERE id = $1`,
		id, userID, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanInstitution(row pgx.Row) (*Institution, error) {
	var inst Institution
	var facilities []byte

	err := row.Scan(
		&inst.ID, &inst.Name, &inst.AdminEmail, &inst.UserID, &inst.Password, &facilities,
		&inst.AddressLine1, &inst.City, &inst.District, &inst.State, &inst.PostalCode, &inst.Country,
		&inst.InstitutionType, &inst.CreatedAt, &inst.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if len(facilities) > 0 {
		if err := json.Unmarshal(facilities, &inst.Facilities); err != nil {
			return nil, fmt.Errorf("unmarshal facilities: %w", err)
		}
	}
	return &inst, nil
}
