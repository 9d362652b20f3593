package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

var (
	ErrNotFound                = errors.New("access record not found")
	ErrValidation              = errors.New("access validation failed")
	ErrUnauthorized            = errors.New("not authorized")
	ErrDuplicatePendingRequest = errors.New("a pending reset request already exists for this user")
	ErrAlreadyResolved         = errors.New("reset request already resolved")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "access").Logger(),
	}
}

var grantableRoles = map[string]bool{
	auth.RoleAdmin:  true,
	auth.RoleDoctor: true,
	auth.RoleNurse:  true,
}

// ProvisionUser creates an access grant with a freshly issued credential:
// the next sequential code for the institution's prefix plus a generated
// password. Allocation and insert happen in one transaction.
func (s *Service) ProvisionUser(ctx context.Context, u *ApprovedUser, actor auth.Actor) error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !grantableRoles[u.Role] {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, u.Role)
	}
	if u.InstitutionID == uuid.Nil {
		return fmt.Errorf("%w: institution is required", ErrValidation)
	}
	if strings.TrimSpace(u.InstitutionName) == "" {
		return fmt.Errorf("%w: institution name is required", ErrValidation)
	}

	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	password, err := GeneratePassword()
	if err != nil {
		return err
	}
	u.Password = &password
	if u.AllowedDashboards == nil {
		u.AllowedDashboards = []string{}
	}
	u.AddedBy = actor.Email
	u.Enabled = true

	prefix := CodePrefix(u.InstitutionName)
	if err := s.repo.ProvisionUser(ctx, u, prefix); err != nil {
		return err
	}
	s.logger.Info().
		Str("uid", u.UID).
		Str("user_code", *u.UserID).
		Str("institution_id", u.InstitutionID.String()).
		Msg("access grant provisioned")
	return nil
}

// Issue allocates a code and password for an institution admin credential.
func (s *Service) Issue(ctx context.Context, institutionName string) (string, string, error) {
	code, err := s.repo.AllocateCode(ctx, CodePrefix(institutionName))
	if err != nil {
		return "", "", err
	}
	password, err := GeneratePassword()
	if err != nil {
		return "", "", err
	}
	return code, password, nil
}

func (s *Service) GetUser(ctx context.Context, uid string) (*ApprovedUser, error) {
	return s.repo.GetUserByUID(ctx, uid)
}

func (s *Service) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]*ApprovedUser, error) {
	return s.repo.ListByInstitution(ctx, institutionID)
}

func (s *Service) SetEnabled(ctx context.Context, uid string, enabled bool) error {
	return s.repo.SetEnabled(ctx, uid, enabled)
}

func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	return s.repo.DeleteUser(ctx, uid)
}

// RequestPasswordReset files a pending reset for the given user code. At
// most one pending request may exist per code; duplicates are rejected so
// the admin queue never shows the same user twice.
func (s *Service) RequestPasswordReset(ctx context.Context, userCode string) (*PasswordResetRequest, error) {
	userCode = strings.TrimSpace(userCode)
	if userCode == "" {
		return nil, fmt.Errorf("%w: user code is required", ErrValidation)
	}
	if _, err := s.repo.GetUserByCode(ctx, userCode); err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPendingReset(ctx, userCode)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePendingRequest, userCode)
	}

	req := &PasswordResetRequest{
		UserCode: userCode,
		Status:   ResetPending,
	}
	if err := s.repo.CreateResetRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_code", userCode).Msg("password reset requested")
	return req, nil
}

func (s *Service) ListResetRequests(ctx context.Context, status ResetStatus) ([]*PasswordResetRequest, error) {
	if status == "" {
		status = ResetPending
	}
	return s.repo.ListResetRequests(ctx, status)
}

// ApproveReset generates a new password, stores it on the grant, and marks
// the request approved. Only a superadmin may approve.
func (s *Service) ApproveReset(ctx context.Context, id uuid.UUID, actor auth.Actor) (*PasswordResetRequest, error) {
	if actor.Role != auth.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only a superadmin can approve resets", ErrUnauthorized)
	}

	req, err := s.repo.GetResetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != ResetPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, req.Status)
	}

	user, err := s.repo.GetUserByCode(ctx, req.UserCode)
	if err != nil {
		return nil, err
	}
	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPassword(ctx, user.UID, password); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req.Status = ResetApproved
	req.ResolvedAt = &now
	req.ResolvedBy = actor.Email
	req.NewPassword = &password
	if err := s.repo.ResolveResetRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_code", req.UserCode).Msg("password reset approved")
	return req, nil
}

// RejectReset marks the request rejected without touching the credential.
func (s *Service) RejectReset(ctx context.Context, id uuid.UUID, actor auth.Actor) (*PasswordResetRequest, error) {
	if actor.Role != auth.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only a superadmin can reject resets", ErrUnauthorized)
	}

	req, err := s.repo.GetResetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != ResetPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, req.Status)
	}

	now := time.Now().UTC()
	req.Status = ResetRejected
	req.ResolvedAt = &now
	req.ResolvedBy = actor.Email
	if err := s.repo.ResolveResetRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_code", req.UserCode).Msg("password reset rejected")
	return req, nil
}
