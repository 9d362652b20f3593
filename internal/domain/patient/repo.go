package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByInstitution(ctx context.Context, institutionID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	// DeleteByInstitution removes every patient of the institution and
	// reports how many rows went, for cascade accounting.
	DeleteByInstitution(ctx context.Context, institutionID uuid.UUID) (int, error)
}
