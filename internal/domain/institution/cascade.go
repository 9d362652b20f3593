package institution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Step names in execution order. Access grants go first so no credential can
// authenticate against a half-deleted tenant, and the institution row goes
// last so a re-run can always find the remaining dependents.
const (
	StepEnumerateGrants   = "enumerate_grants"
	StepDeleteGrants      = "delete_grants"
	StepClearProfiles     = "clear_profiles"
	StepDeletePatients    = "delete_patients"
	StepDeleteInstitution = "delete_institution"
)

// GrantStore is the slice of the access domain the cascade needs.
type GrantStore interface {
	// ListUIDsByInstitution returns the uid of every grant scoped to the
	// institution, before any are deleted.
	ListUIDsByInstitution(ctx context.Context, institutionID uuid.UUID) ([]string, error)
	DeleteByInstitution(ctx context.Context, institutionID uuid.UUID) (int, error)
}

// ProfileStore clears cached login profiles for deleted users.
type ProfileStore interface {
	// ClearInstitution clears the institution affiliation and the
	// tenant-scoped role on the cached profile. A missing profile is a
	// no-op, not an error.
	ClearInstitution(ctx context.Context, uid string) (bool, error)
}

// PatientStore removes the institution's patient records.
type PatientStore interface {
	DeleteByInstitution(ctx context.Context, institutionID uuid.UUID) (int, error)
}

// StepResult records the outcome of one cascade step.
type StepResult struct {
	Step     string `json:"step"`
	Affected int    `json:"affected"`
	Error    string `json:"error,omitempty"`

	err error
}

func (s StepResult) Failed() bool { return s.err != nil }

// Report is the full outcome of a cascade run, one entry per step in the
// order the steps executed.
type Report struct {
	InstitutionID uuid.UUID    `json:"institutionId"`
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
	Steps         []StepResult `json:"steps"`
}

// Failed returns the steps that recorded an error.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// PartialFailureError signals that at least one cascade step failed. The
// attached report still covers every step, because the cascade never aborts
// early: a failed step is recorded and the run continues.
type PartialFailureError struct {
	Report *Report
}

func (e *PartialFailureError) Error() string {
	failed := e.Report.Failed()
	return fmt.Sprintf("cascade deletion of institution %s: %d of %d steps failed (first: %s: %s)",
		e.Report.InstitutionID, len(failed), len(e.Report.Steps), failed[0].Step, failed[0].Error)
}

// CascadeCoordinator deletes an institution and everything that references
// it. The store has no server-side relations, so the cascade is an ordered
// sequence of independent deletes; every step is idempotent and the whole
// run can be repeated to finish a partially failed earlier run.
type CascadeCoordinator struct {
	grants       GrantStore
	profiles     ProfileStore
	patients     PatientStore
	institutions Repository
	logger       zerolog.Logger
}

func NewCascadeCoordinator(grants GrantStore, profiles ProfileStore, patients PatientStore, institutions Repository, logger zerolog.Logger) *CascadeCoordinator {
	return &CascadeCoordinator{
		grants:       grants,
		profiles:     profiles,
		patients:     patients,
		institutions: institutions,
		logger:       logger.With().Str("component", "cascade").Logger(),
	}
}

// Run executes the cascade for one institution. It always returns a report
// covering all steps; if any step failed the error is a *PartialFailureError
// wrapping that same report.
func (c *CascadeCoordinator) Run(ctx context.Context, institutionID uuid.UUID) (*Report, error) {
	report := &Report{
		InstitutionID: institutionID,
		StartedAt:     time.Now().UTC(),
	}

	// Capture the uids up front; once the grants are gone there is nothing
	// left pointing at the cached profiles.
	uids, err := c.grants.ListUIDsByInstitution(ctx, institutionID)
	report.record(StepEnumerateGrants, len(uids), err)

	n, err := c.grants.DeleteByInstitution(ctx, institutionID)
	report.record(StepDeleteGrants, n, err)

	cleared := 0
	var profileErr error
	for _, uid := range uids {
		ok, err := c.profiles.ClearInstitution(ctx, uid)
		if err != nil {
			if profileErr == nil {
				profileErr = fmt.Errorf("uid %s: %w", uid, err)
			}
			continue
		}
		if ok {
			cleared++
		}
	}
	report.record(StepClearProfiles, cleared, profileErr)

	n, err = c.patients.DeleteByInstitution(ctx, institutionID)
	report.record(StepDeletePatients, n, err)

	deleted, err := c.institutions.Delete(ctx, institutionID)
	n = 0
	if deleted {
		n = 1
	}
	report.record(StepDeleteInstitution, n, err)

	report.FinishedAt = time.Now().UTC()

	if failed := report.Failed(); len(failed) > 0 {
		c.logger.Error().
			Str("institution_id", institutionID.String()).
			Int("failed_steps", len(failed)).
			Msg("cascade deletion finished with failures")
		return report, &PartialFailureError{Report: report}
	}

	c.logger.Info().
		Str("institution_id", institutionID.String()).
		Int("steps", len(report.Steps)).
		Msg("cascade deletion complete")
	return report, nil
}

func (r *Report) record(step string, affected int, err error) {
	res := StepResult{Step: step, Affected: affected, err: err}
	if err != nil {
		res.Error = err.Error()
	}
	r.Steps = append(r.Steps, res)
}
