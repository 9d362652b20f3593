package referral

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a referral.
type Status string

const (
	StatusPending           Status = "Pending"
	StatusAccepted          Status = "Accepted"
	StatusRejected          Status = "Rejected"
	StatusPatientAdmitted   Status = "Patient Admitted"
	StatusPatientDischarged Status = "Patient Discharged"
	StatusPatientDeceased   Status = "Patient Deceased"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected,
		StatusPatientAdmitted, StatusPatientDischarged, StatusPatientDeceased:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are accepted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusPatientDischarged, StatusPatientDeceased:
		return true
	}
	return false
}

// Priority is the urgency of a referral.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// VitalSigns is a point-in-time vitals snapshot attached to a status update.
type VitalSigns struct {
	BloodPressure    string `json:"bloodPressure,omitempty"`
	HeartRate        string `json:"heartRate,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	RespiratoryRate  string `json:"respiratoryRate,omitempty"`
	OxygenSaturation string `json:"oxygenSaturation,omitempty"`
}

// IsZero reports whether every field is empty.
func (v VitalSigns) IsZero() bool {
	return v == VitalSigns{}
}

// StatusUpdate is one immutable entry in a referral's audit trail.
type StatusUpdate struct {
	Timestamp      time.Time   `json:"timestamp"`
	UpdatedBy      string      `json:"updatedBy"`
	UpdatedByEmail string      `json:"updatedByEmail"`
	UpdatedByRole  string      `json:"updatedByRole"`
	Status         Status      `json:"status"`
	Condition      string      `json:"condition,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	VitalSigns     *VitalSigns `json:"vitalSigns,omitempty"`
}

// Trail is the append-only audit trail of a referral. Entries can be
// appended and read but never replaced, reordered, or removed.
type Trail struct {
	updates []StatusUpdate
}

// NewTrail builds a trail from existing entries (used when loading from the
// store). The slice is copied.
func NewTrail(updates []StatusUpdate) Trail {
	cp := make([]StatusUpdate, len(updates))
	copy(cp, updates)
	return Trail{updates: cp}
}

func (t *Trail) append(u StatusUpdate) {
	t.updates = append(t.updates, u)
}

// Len returns the number of entries.
func (t Trail) Len() int { return len(t.updates) }

// Last returns the most recent entry, if any.
func (t Trail) Last() (StatusUpdate, bool) {
	if len(t.updates) == 0 {
		return StatusUpdate{}, false
	}
	return t.updates[len(t.updates)-1], true
}

// Updates returns a copy of all entries in append order.
func (t Trail) Updates() []StatusUpdate {
	cp := make([]StatusUpdate, len(t.updates))
	copy(cp, t.updates)
	return cp
}

func (t Trail) MarshalJSON() ([]byte, error) {
	if t.updates == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.updates)
}

func (t *Trail) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.updates)
}

// Details carries the free-form clinical context captured at referral time.
type Details struct {
	Diagnosis         string `json:"diagnosis,omitempty"`
	ReasonForReferral string `json:"reasonForReferral,omitempty"`
	TreatmentGiven    string `json:"treatmentGiven,omitempty"`
}

// Referral is a patient-transfer request between two institutions. The
// patient fields are a denormalized snapshot taken at referral time so the
// referral survives the source patient record being edited or deleted.
//
// Invariant: once Status leaves StatusPending, the trail is non-empty and its
// last entry's status equals Status. Status and the trail are always written
// together in a single store update.
type Referral struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	FromInstitutionID    uuid.UUID  `db:"from_institution_id" json:"fromInstitutionId"`
	FromInstitutionName  string     `db:"from_institution_name" json:"fromInstitutionName"`
	FromUnit             string     `db:"from_unit" json:"fromUnit,omitempty"`
	ToInstitutionID      uuid.UUID  `db:"to_institution_id" json:"toInstitutionId"`
	ToInstitutionName    string     `db:"to_institution_name" json:"toInstitutionName"`
	ToUnit               string     `db:"to_unit" json:"toUnit,omitempty"`
	PatientName          string     `db:"patient_name" json:"patientName"`
	PatientAge           int        `db:"patient_age" json:"patientAge"`
	PatientAgeUnit       string     `db:"patient_age_unit" json:"patientAgeUnit"`
	PatientGender        string     `db:"patient_gender" json:"patientGender"`
	PatientAdmissionDate *time.Time `db:"patient_admission_date" json:"patientAdmissionDate,omitempty"`
	Priority             Priority   `db:"priority" json:"priority"`
	Status               Status     `db:"status" json:"status"`
	StatusUpdates        Trail      `db:"status_updates" json:"statusUpdates"`
	IsRead               bool       `db:"is_read" json:"isRead"`
	ReferralDate         time.Time  `db:"referral_date" json:"referralDate"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	LastUpdatedAt        time.Time  `db:"last_updated_at" json:"lastUpdatedAt"`
	ReferredBy           string     `db:"referred_by" json:"referredBy"`
	ReferredByRole       string     `db:"referred_by_role" json:"referredByRole"`
	Details              Details    `db:"details" json:"referralDetails"`
	ReferralLetter       *string    `db:"referral_letter" json:"referralLetter,omitempty"`
	AcceptedBy           *string    `db:"accepted_by" json:"acceptedBy,omitempty"`
	AcceptedAt           *time.Time `db:"accepted_at" json:"acceptedAt,omitempty"`
}
