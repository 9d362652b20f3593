package patient

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
	ErrNotFound   = errors.New("patient not found")
	ErrValidation = errors.New("patient validation failed")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "patient").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, p *Patient, actor auth.Actor) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.InstitutionID == uuid.Nil {
		return fmt.Errorf("%w: institution is required", ErrValidation)
	}
	if p.Age < 0 {
		return fmt.Errorf("%w: age cannot be negative", ErrValidation)
	}
	p.CreatedBy = actor.Email

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("institution_id", p.InstitutionID.String()).
		Msg("patient created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByInstitution(ctx context.Context, institutionID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListByInstitution(ctx, institutionID, limit, offset)
}
