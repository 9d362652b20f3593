package access

import (
	"time"

	"github.com/google/uuid"
)

// ApprovedUser is an access grant: the record that entitles a person to log
// in and act within one institution. The uid is the stable identity key
// shared with the cached login profile.
type ApprovedUser struct {
	UID               string    `db:"uid" json:"uid"`
	Email             string    `db:"email" json:"email"`
	DisplayName       string    `db:"display_name" json:"displayName"`
	Role              string    `db:"role" json:"role"`
	InstitutionID     uuid.UUID `db:"institution_id" json:"institutionId"`
	InstitutionName   string    `db:"institution_name" json:"institutionName"`
	UserID            *string   `db:"user_id" json:"userID,omitempty"`
	Password          *string   `db:"password" json:"password,omitempty"`
	AllowedDashboards []string  `db:"allowed_dashboards" json:"allowedDashboards"`
	AddedBy           string    `db:"added_by" json:"addedBy"`
	AddedAt           time.Time `db:"added_at" json:"addedAt"`
	Enabled           bool      `db:"enabled" json:"enabled"`
}

// Password reset request lifecycle.
type ResetStatus string

const (
	ResetPending  ResetStatus = "pending"
	ResetApproved ResetStatus = "approved"
	ResetRejected ResetStatus = "rejected"
)

// PasswordResetRequest tracks a user's request for a new password. Requests
// are keyed by the issued user code, not the uid, because the person asking
// has typically lost access to everything except that code.
type PasswordResetRequest struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	UserCode    string      `db:"user_code" json:"userCode"`
	Status      ResetStatus `db:"status" json:"status"`
	RequestedAt time.Time   `db:"requested_at" json:"requestedAt"`
	ResolvedAt  *time.Time  `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy  string      `db:"resolved_by" json:"resolvedBy,omitempty"`
	NewPassword *string     `db:"new_password" json:"newPassword,omitempty"`
}
