package institution

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for institutions.
type Repository interface {
	Create(ctx context.Context, inst *Institution) error
	GetByID(ctx context.Context, id uuid.UUID) (*Institution, error)
	Update(ctx context.Context, inst *Institution) error
	// Delete removes the institution row. A missing row is not an error;
	// the boolean reports whether a row was actually deleted, so cascade
	// re-runs can repair earlier partial failures without tripping on
	// "institution not found".
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Institution, int, error)
	SetCredential(ctx context.Context, id uuid.UUID, userID, password string) error
}
