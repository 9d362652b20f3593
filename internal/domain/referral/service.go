package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

type Service struct {
	repo     Repository
	logger   zerolog.Logger
	notifier *ChangeNotifier
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetChangeNotifier attaches an optional notifier that nudges live-view
// streams after a write.
func (s *Service) SetChangeNotifier(n *ChangeNotifier) {
	s.notifier = n
}

// Create validates and persists a new referral in the Pending state with its
// trail empty.
func (s *Service) Create(ctx context.Context, r *Referral, actor auth.Actor) error {
	if r.FromInstitutionID == uuid.Nil || r.ToInstitutionID == uuid.Nil {
		return fmt.Errorf("%w: both institutions are required", ErrValidation)
	}
	if r.FromInstitutionID == r.ToInstitutionID {
		return fmt.Errorf("%w: cannot refer a patient to the same institution", ErrValidation)
	}
	if strings.TrimSpace(r.PatientName) == "" {
		return fmt.Errorf("%w: patient name is required", ErrValidation)
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, r.Priority)
	}

	r.Status = StatusPending
	r.StatusUpdates = Trail{}
	r.IsRead = false
	if r.ReferralDate.IsZero() {
		r.ReferralDate = time.Now()
	}
	r.ReferredBy = actor.Name
	r.ReferredByRole = actor.Role

	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	s.notifyChange(r)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

// Accept transitions a pending referral to Accepted on behalf of actor.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Referral, error) {
	return s.transition(ctx, id, func(r *Referral) error {
		return Accept(r, actor, time.Now())
	})
}

// Reject transitions a pending referral to Rejected with the given reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor auth.Actor, reason string) (*Referral, error) {
	return s.transition(ctx, id, func(r *Referral) error {
		return Reject(r, actor, reason, time.Now())
	})
}

// UpdateStatus records a post-acceptance clinical transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, actor auth.Actor, next Status, condition, notes string, vitals *VitalSigns) (*Referral, error) {
	return s.transition(ctx, id, func(r *Referral) error {
		return UpdateStatus(r, actor, next, condition, notes, vitals, time.Now())
	})
}

// transition reads the current document, applies the pure state-machine
// mutation, and persists status plus trail in one write. Validation happens
// before the write, so a failed transition never touches the store.
func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*Referral) error) (*Referral, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(r); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, r); err != nil {
		return nil, err
	}
	s.notifyChange(r)
	return r, nil
}

// MarkRead flips the unread flag for the recipient. Failures only affect the
// unread badge, never list correctness, so they are logged and swallowed.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, actor auth.Actor) {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		s.logger.Warn().Err(err).
			Str("referral_id", id.String()).
			Str("actor", actor.Email).
			Msg("failed to mark referral as read")
		return
	}
	if inst, err := uuid.Parse(actor.InstitutionID); err == nil {
		s.notify(inst)
	}
}

func (s *Service) ListBySender(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	return s.repo.ListBySender(ctx, institutionID)
}

func (s *Service) ListByRecipient(ctx context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	return s.repo.ListByRecipient(ctx, institutionID)
}

func (s *Service) CountUnread(ctx context.Context, institutionID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, institutionID)
}

func (s *Service) notifyChange(r *Referral) {
	s.notify(r.FromInstitutionID, r.ToInstitutionID)
}

func (s *Service) notify(institutionIDs ...uuid.UUID) {
	if s.notifier != nil {
		s.notifier.Notify(institutionIDs...)
	}
}
