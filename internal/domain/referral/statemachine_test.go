package referral

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

func newTestReferral(status Status) *Referral {
	return &Referral{
		ID:                  uuid.New(),
		FromInstitutionID:   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		FromInstitutionName: "District Hospital A",
		ToInstitutionID:     uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		ToInstitutionName:   "Referral Hospital B",
		PatientName:         "Asha Sharma",
		PatientAge:          3,
		PatientAgeUnit:      "years",
		PatientGender:       "Female",
		Priority:            PriorityCritical,
		Status:              status,
	}
}

func recipientActor() auth.Actor {
	return auth.Actor{
		UID:           "uid-b1",
		Email:         "doctor@hospital-b.example",
		Name:          "Dr. Rao",
		Role:          auth.RoleDoctor,
		InstitutionID: "22222222-2222-2222-2222-222222222222",
	}
}

func senderActor() auth.Actor {
	return auth.Actor{
		UID:           "uid-a1",
		Email:         "doctor@hospital-a.example",
		Name:          "Dr. Devi",
		Role:          auth.RoleDoctor,
		InstitutionID: "11111111-1111-1111-1111-111111111111",
	}
}

func TestAcceptFromPending(t *testing.T) {
	r := newTestReferral(StatusPending)
	now := time.Now()

	if err := Accept(r, recipientActor(), now); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if r.Status != StatusAccepted {
		t.Errorf("status = %q, want %q", r.Status, StatusAccepted)
	}
	if r.StatusUpdates.Len() != 1 {
		t.Fatalf("trail length = %d, want 1", r.StatusUpdates.Len())
	}
	last, _ := r.StatusUpdates.Last()
	if last.Status != StatusAccepted {
		t.Errorf("last trail status = %q, want %q", last.Status, StatusAccepted)
	}
	if r.AcceptedBy == nil || *r.AcceptedBy != "Dr. Rao" {
		t.Errorf("AcceptedBy = %v, want Dr. Rao", r.AcceptedBy)
	}
	if r.AcceptedAt == nil || !r.AcceptedAt.Equal(now) {
		t.Errorf("AcceptedAt = %v, want %v", r.AcceptedAt, now)
	}
}

func TestAcceptRequiresRecipientInstitution(t *testing.T) {
	r := newTestReferral(StatusPending)
	err := Accept(r, senderActor(), time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if r.Status != StatusPending || r.StatusUpdates.Len() != 0 {
		t.Error("failed accept must not mutate the referral")
	}
}

func TestAcceptInvalidStates(t *testing.T) {
	for _, status := range []Status{StatusAccepted, StatusRejected, StatusPatientAdmitted, StatusPatientDischarged, StatusPatientDeceased} {
		r := newTestReferral(status)
		err := Accept(r, recipientActor(), time.Now())
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Accept from %q: err = %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestRejectRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\t\n"} {
		r := newTestReferral(StatusPending)
		err := Reject(r, recipientActor(), reason, time.Now())
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Reject with reason %q: err = %v, want ErrValidation", reason, err)
		}
		if r.StatusUpdates.Len() != 0 {
			t.Errorf("Reject with reason %q appended a trail entry", reason)
		}
	}
}

func TestRejectFromPending(t *testing.T) {
	r := newTestReferral(StatusPending)
	if err := Reject(r, recipientActor(), "no ICU bed available", time.Now()); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if r.Status != StatusRejected {
		t.Errorf("status = %q, want %q", r.Status, StatusRejected)
	}
	last, ok := r.StatusUpdates.Last()
	if !ok || last.Notes != "no ICU bed available" {
		t.Errorf("rejection reason not recorded: %+v", last)
	}
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	allStatuses := []Status{StatusPending, StatusAccepted, StatusRejected, StatusPatientAdmitted, StatusPatientDischarged, StatusPatientDeceased}
	targets := []Status{StatusPatientAdmitted, StatusPatientDischarged, StatusPatientDeceased}

	legal := map[Status]map[Status]bool{
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

	for _, from := range allStatuses {
		for _, to := range targets {
			r := newTestReferral(from)
			err := UpdateStatus(r, recipientActor(), to, "stable", "", nil, time.Now())

			if legal[from][to] {
				if err != nil {
					t.Errorf("UpdateStatus %q -> %q: unexpected error %v", from, to, err)
					continue
				}
				if r.Status != to {
					t.Errorf("UpdateStatus %q -> %q: status = %q", from, to, r.Status)
				}
				last, _ := r.StatusUpdates.Last()
				if last.Status != r.Status {
					t.Errorf("UpdateStatus %q -> %q: trail diverged from status", from, to)
				}
			} else {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("UpdateStatus %q -> %q: err = %v, want ErrInvalidTransition", from, to, err)
				}
				if r.StatusUpdates.Len() != 0 {
					t.Errorf("UpdateStatus %q -> %q: illegal transition appended a trail entry", from, to)
				}
			}
		}
	}
}

func TestUpdateStatusRejectsLifecycleStatesAsTargets(t *testing.T) {
	for _, to := range []Status{StatusPending, StatusAccepted, StatusRejected} {
		r := newTestReferral(StatusAccepted)
		err := UpdateStatus(r, recipientActor(), to, "stable", "", nil, time.Now())
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("UpdateStatus to %q: err = %v, want ErrInvalidTransition", to, err)
		}
	}
}

func TestUpdateStatusRequiresCondition(t *testing.T) {
	r := newTestReferral(StatusAccepted)
	err := UpdateStatus(r, recipientActor(), StatusPatientAdmitted, "  ", "", nil, time.Now())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestUpdateStatusVitalsSnapshot(t *testing.T) {
	r := newTestReferral(StatusAccepted)
	vitals := &VitalSigns{HeartRate: "122", OxygenSaturation: "91%"}
	if err := UpdateStatus(r, recipientActor(), StatusPatientAdmitted, "Stable, on oxygen", "", vitals, time.Now()); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	last, _ := r.StatusUpdates.Last()
	if last.VitalSigns == nil || last.VitalSigns.HeartRate != "122" {
		t.Errorf("vitals snapshot not stored: %+v", last.VitalSigns)
	}

	// Mutating the caller's copy must not reach the stored snapshot.
	vitals.HeartRate = "80"
	last, _ = r.StatusUpdates.Last()
	if last.VitalSigns.HeartRate != "122" {
		t.Error("stored vitals aliased to caller's struct")
	}
}

func TestUpdateStatusOmitsEmptyVitals(t *testing.T) {
	r := newTestReferral(StatusAccepted)
	if err := UpdateStatus(r, recipientActor(), StatusPatientAdmitted, "Stable", "", &VitalSigns{}, time.Now()); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	last, _ := r.StatusUpdates.Last()
	if last.VitalSigns != nil {
		t.Errorf("empty vitals must be omitted, got %+v", last.VitalSigns)
	}
}

// Full lifecycle: A refers Asha Sharma to B; B accepts, then admits.
func TestReferralLifecycleScenario(t *testing.T) {
	r := newTestReferral(StatusPending)
	actor := recipientActor()

	if err := Accept(r, actor, time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.Status != StatusAccepted || r.StatusUpdates.Len() != 1 {
		t.Fatalf("after accept: status=%q trail=%d", r.Status, r.StatusUpdates.Len())
	}

	if err := UpdateStatus(r, actor, StatusPatientAdmitted, "Stable, on oxygen", "", nil, time.Now()); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if r.Status != StatusPatientAdmitted || r.StatusUpdates.Len() != 2 {
		t.Fatalf("after admit: status=%q trail=%d", r.Status, r.StatusUpdates.Len())
	}
	last, _ := r.StatusUpdates.Last()
	if last.Condition != "Stable, on oxygen" {
		t.Errorf("condition = %q", last.Condition)
	}
	if last.VitalSigns != nil {
		t.Error("vitalSigns must be absent when none supplied")
	}
}

// The §3 invariant: status always equals the last trail entry's status.
func TestStatusNeverDivergesFromTrail(t *testing.T) {
	r := newTestReferral(StatusPending)
	actor := recipientActor()
	steps := []func() error{
		func() error { return Accept(r, actor, time.Now()) },
		func() error { return UpdateStatus(r, actor, StatusPatientAdmitted, "stable", "", nil, time.Now()) },
		func() error { return UpdateStatus(r, actor, StatusPatientDischarged, "recovered", "", nil, time.Now()) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		last, ok := r.StatusUpdates.Last()
		if !ok || last.Status != r.Status {
			t.Fatalf("step %d: trail diverged (status=%q last=%q)", i, r.Status, last.Status)
		}
	}
}

func TestTrailIsAppendOnly(t *testing.T) {
	r := newTestReferral(StatusPending)
	if err := Accept(r, recipientActor(), time.Now()); err != nil {
		t.Fatal(err)
	}

	// Mutating the returned copy must not affect the trail.
	updates := r.StatusUpdates.Updates()
	updates[0].Status = StatusRejected
	last, _ := r.StatusUpdates.Last()
	if last.Status != StatusAccepted {
		t.Error("Updates() leaked internal storage")
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []Status{StatusRejected, StatusPatientDischarged, StatusPatientDeceased}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusAccepted, StatusPatientAdmitted} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}
