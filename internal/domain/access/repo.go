package access

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for access grants and password reset
// requests.
type Repository interface {
	// ProvisionUser assigns the next free code for the prefix and inserts
	// the grant in one transaction, so two concurrent provisions for the
	// same institution cannot be issued the same code.
	ProvisionUser(ctx context.Context, u *ApprovedUser, prefix string) error
	// AllocateCode reserves nothing; it computes the next free code under
	// the allocation lock. Callers who persist the code elsewhere (the
	// institution admin credential) must do so promptly.
	AllocateCode(ctx context.Context, prefix string) (string, error)

	GetUserByUID(ctx context.Context, uid string) (*ApprovedUser, error)
	GetUserByCode(ctx context.Context, userCode string) (*ApprovedUser, error)
	ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]*ApprovedUser, error)
	SetEnabled(ctx context.Context, uid string, enabled bool) error
	SetPassword(ctx context.Context, uid string, password string) error
	DeleteUser(ctx context.Context, uid string) error

	// Cascade support.
	ListUIDsByInstitution(ctx context.Context, institutionID uuid.UUID) ([]string, error)
	DeleteByInstitution(ctx context.Context, institutionID uuid.UUID) (int, error)

	CreateResetRequest(ctx context.Context, req *PasswordResetRequest) error
	HasPendingReset(ctx context.Context, userCode string) (bool, error)
	GetResetRequest(ctx context.Context, id uuid.UUID) (*PasswordResetRequest, error)
	ListResetRequests(ctx context.Context, status ResetStatus) ([]*PasswordResetRequest, error)
	ResolveResetRequest(ctx context.Context, req *PasswordResetRequest) error
}
