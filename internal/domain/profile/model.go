package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the uid-keyed login cache: a denormalized copy of the identity
// plus institution affiliation, written at sign-in so dashboards render
// without a join against the grants. It is never the source of truth; the
// access grant is.
type Profile struct {
	UID             string     `db:"uid" json:"uid"`
	Email           string     `db:"email" json:"email"`
	DisplayName     string     `db:"display_name" json:"displayName"`
	Role            string     `db:"role" json:"role,omitempty"`
	InstitutionID   *uuid.UUID `db:"institution_id" json:"institutionId,omitempty"`
	InstitutionName *string    `db:"institution_name" json:"institutionName,omitempty"`
	LastLoginAt     time.Time  `db:"last_login_at" json:"lastLoginAt"`
}
