package referral

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

var (
	// ErrInvalidTransition is returned when a status change is not legal
	// from the referral's current state.
	ErrInvalidTransition = errors.New("status change not legal from current state")
	// ErrUnauthorized is returned when the actor's institution is not the
	// side permitted to act on the referral.
	ErrUnauthorized = errors.New("actor is not permitted to act on this referral")
	// ErrValidation is returned when a required field is missing or blank.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced referral does not exist.
	ErrNotFound = errors.New("referral not found")
)

// updateTargets maps the states reachable through UpdateStatus from each
// non-terminal post-acceptance state.
var updateTargets = map[Status]map[Status]bool{
	StatusAccepted: {
		StatusPatientAdmitted:   true,
		StatusPatientDischarged: true,
		StatusPatientDeceased:   true,
	},
	StatusPatientAdmitted: {
		StatusPatientDischarged: true,
		StatusPatientDeceased:   true,
	},
}

// Accept moves a pending referral to Accepted. Only an actor belonging to
// the recipient institution may accept. The trail entry and the status field
// are mutated together; the caller persists both in one write.
func Accept(r *Referral, actor auth.Actor, now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot accept referral in state %q", ErrInvalidTransition, r.Status)
	}
	if actor.InstitutionID != r.ToInstitutionID.String() {
		return fmt.Errorf("%w: only the receiving institution may accept", ErrUnauthorized)
	}

	r.StatusUpdates.append(StatusUpdate{
		Timestamp:      now,
		UpdatedBy:      actor.Name,
		UpdatedByEmail: actor.Email,
		UpdatedByRole:  actor.Role,
		Status:         StatusAccepted,
	})
	r.Status = StatusAccepted
	acceptedBy := actor.Name
	acceptedAt := now
	r.AcceptedBy = &acceptedBy
	r.AcceptedAt = &acceptedAt
	r.LastUpdatedAt = now
	return nil
}

// Reject moves a pending referral to Rejected. A non-blank reason is
// required and is recorded on the trail entry.
func Reject(r *Referral, actor auth.Actor, reason string, now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot reject referral in state %q", ErrInvalidTransition, r.Status)
	}
	if actor.InstitutionID != r.ToInstitutionID.String() {
		return fmt.Errorf("%w: only the receiving institution may reject", ErrUnauthorized)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	r.StatusUpdates.append(StatusUpdate{
		Timestamp:      now,
		UpdatedBy:      actor.Name,
		UpdatedByEmail: actor.Email,
		UpdatedByRole:  actor.Role,
		Status:         StatusRejected,
		Notes:          reason,
	})
	r.Status = StatusRejected
	r.LastUpdatedAt = now
	return nil
}

// UpdateStatus records a post-acceptance clinical transition. The current
// state must be Accepted or Patient Admitted; the target must be Patient
// Admitted, Patient Discharged, or Patient Deceased. A non-blank clinical
// condition is required. Vitals are stored as a full snapshot only when at
// least one field is set.
func UpdateStatus(r *Referral, actor auth.Actor, next Status, condition, notes string, vitals *VitalSigns, now time.Time) error {
	targets, ok := updateTargets[r.Status]
	if !ok {
		return fmt.Errorf("%w: cannot update status of referral in state %q", ErrInvalidTransition, r.Status)
	}
	if !targets[next] {
		return fmt.Errorf("%w: cannot move from %q to %q", ErrInvalidTransition, r.Status, next)
	}
	if actor.InstitutionID != r.ToInstitutionID.String() {
		return fmt.Errorf("%w: only the receiving institution may update patient status", ErrUnauthorized)
	}
	if strings.TrimSpace(condition) == "" {
		return fmt.Errorf("%w: patient condition is required", ErrValidation)
	}

	update := StatusUpdate{
		Timestamp:      now,
		UpdatedBy:      actor.Name,
		UpdatedByEmail: actor.Email,
		UpdatedByRole:  actor.Role,
		Status:         next,
		Condition:      condition,
		Notes:          notes,
	}
	if vitals != nil && !vitals.IsZero() {
		snapshot := *vitals
		update.VitalSigns = &snapshot
	}

	r.StatusUpdates.append(update)
	r.Status = next
	r.LastUpdatedAt = now
	return nil
}
