package profile

import "context"

// Repository defines persistence for cached login profiles.
type Repository interface {
	Upsert(ctx context.Context, p *Profile) error
	GetByUID(ctx context.Context, uid string) (*Profile, error)
	// ClearInstitution clears the affiliation on the cached profile:
	// institution id and name go NULL and the tenant-scoped role is
	// blanked. A missing uid is a no-op and reports false.
	ClearInstitution(ctx context.Context, uid string) (bool, error)
}
