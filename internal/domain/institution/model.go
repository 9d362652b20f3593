package institution

import (
	"time"

	"github.com/google/uuid"
)

// Institution is a tenant: an independently administered hospital or ward
// owning its own users and patients. The store enforces no referential
// integrity between an institution and its dependents; deletion cascades are
// coordinated in application code (see cascade.go).
type Institution struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	AdminEmail      string     `db:"admin_email" json:"adminEmail"`
	UserID          *string    `db:"user_id" json:"userID,omitempty"`
	Password        *string    `db:"password" json:"password,omitempty"`
	Facilities      []string   `db:"facilities" json:"facilities"`
	AddressLine1    string     `db:"address_line1" json:"addressLine1,omitempty"`
	City            string     `db:"city" json:"city,omitempty"`
	District        string     `db:"district" json:"district,omitempty"`
	State           string     `db:"state" json:"state,omitempty"`
	PostalCode      string     `db:"postal_code" json:"postalCode,omitempty"`
	Country         string     `db:"country" json:"country,omitempty"`
	InstitutionType string     `db:"institution_type" json:"institutionType,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	CreatedBy       string     `db:"created_by" json:"createdBy,omitempty"`
}
