package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is an institution-scoped ward record. Patients never move between
// institutions; a transfer happens through a referral, which copies the
// demographic details rather than re-pointing this row.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InstitutionID uuid.UUID  `db:"institution_id" json:"institutionId"`
	Name          string     `db:"name" json:"name"`
	Age           int        `db:"age" json:"age"`
	AgeUnit       string     `db:"age_unit" json:"ageUnit,omitempty"`
	Gender        string     `db:"gender" json:"gender,omitempty"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis,omitempty"`
	Unit          string     `db:"unit" json:"unit,omitempty"`
	AdmissionDate *time.Time `db:"admission_date" json:"admissionDate,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	CreatedBy     string     `db:"created_by" json:"createdBy,omitempty"`
}
