package referral

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for referrals.
//
// UpdateStatus must write the status field and the full trail in a single
// store update so they can never diverge. The store offers no cross-writer
// locking; the last successful write wins.
type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	UpdateStatus(ctx context.Context, r *Referral) error
	MarkRead(ctx context.Context, id uuid.UUID) error
	ListBySender(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error)
	ListByRecipient(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error)
	CountUnread(ctx context.Context, institutionID uuid.UUID) (int, error)
}
