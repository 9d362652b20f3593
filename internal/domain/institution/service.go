package institution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

var (
	ErrNotFound   = errors.New("institution not found")
	ErrValidation = errors.New("institution validation failed")
)

// CredentialIssuer provisions a login credential for an institution admin.
// The issued userID is a sequential code derived from the institution name.
type CredentialIssuer interface {
	Issue(ctx context.Context, institutionName string) (userID, password string, err error)
}

type Service struct {
	repo    Repository
	cascade *CascadeCoordinator
	issuer  CredentialIssuer
	logger  zerolog.Logger
}

func NewService(repo Repository, cascade *CascadeCoordinator, issuer CredentialIssuer, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		cascade: cascade,
		issuer:  issuer,
		logger:  logger.With().Str("service", "institution").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, inst *Institution, actor auth.Actor) error {
	if strings.TrimSpace(inst.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(inst.AdminEmail) == "" {
		return fmt.Errorf("%w: admin email is required", ErrValidation)
	}
	if inst.Facilities == nil {
		inst.Facilities = []string{}
	}
	inst.UserID = nil
	inst.Password = nil
	inst.CreatedBy = actor.Email

	if err := s.repo.Create(ctx, inst); err != nil {
		return err
	}
	s.logger.Info().
		Str("institution_id", inst.ID.String()).
		Str("name", inst.Name).
		Msg("institution created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Institution, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, inst *Institution) error {
	if strings.TrimSpace(inst.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return s.repo.Update(ctx, inst)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Institution, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// IssueCredential provisions and stores a login credential for the
// institution admin. Issuing again replaces the previous credential.
func (s *Service) IssueCredential(ctx context.Context, id uuid.UUID) (*Institution, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	userID, password, err := s.issuer.Issue(ctx, inst.Name)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	if err := s.repo.SetCredential(ctx, id, userID, password); err != nil {
		return nil, err
	}

	inst.UserID = &userID
	inst.Password = &password
	s.logger.Info().
		Str("institution_id", id.String()).
		Str("user_id", userID).
		Msg("institution credential issued")
	return inst, nil
}

// Delete runs the full cascade. The report is returned even when the run
// partially failed, so callers can show which steps need a re-run.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.cascade.Run(ctx, id)
}
