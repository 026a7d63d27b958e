package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/domain/verification"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// Accounts is the slice of the identity service administration needs.
type Accounts interface {
	CurrentUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]*identity.User, int, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	VerifyDoctor(ctx context.Context, doctorID uuid.UUID) (*identity.Doctor, error)
	PendingVerifications(ctx context.Context) ([]*identity.Doctor, error)
	CountUsers(ctx context.Context) (map[string]int, error)
	CountDoctors(ctx context.Context) (identity.DoctorCounts, error)
}

// Documents is the slice of the document service administration needs.
type Documents interface {
	StoredKeys(ctx context.Context, ownerID uuid.UUID) ([]string, error)
	RemoveStored(ctx context.Context, keys []string) int
	CountDocuments(ctx context.Context) (int, error)
	CountActiveShares(ctx context.Context) (int, error)
}

// Keys issues and lists doctor verification keys.
type Keys interface {
	Issue(ctx context.Context, req verification.IssueKeyRequest) (*verification.DoctorKey, error)
	List(ctx context.Context, unusedOnly bool, limit, offset int) ([]*verification.DoctorKey, int, error)
}

type Service struct {
	accounts Accounts
	docs     Documents
	keys     Keys
	logger   zerolog.Logger
}

func NewService(accounts Accounts, docs Documents, keys Keys, logger zerolog.Logger) *Service {
	return &Service{accounts: accounts, docs: docs, keys: keys, logger: logger}
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*identity.User, int, error) {
	return s.accounts.ListUsers(ctx, role, limit, offset)
}

// DeleteUser removes an account. Its documents, grants and access logs go
// with the account row; the stored files are removed only once that delete
// has committed, so a failed delete leaves the account whole. Admins cannot
// delete themselves.
func (s *Service) DeleteUser(ctx context.Context, adminID, userID uuid.UUID) error {
	if adminID == userID {
		return apperr.Forbidden("you cannot delete your own account")
	}
	u, err := s.accounts.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}

	keys, err := s.docs.StoredKeys(ctx, u.ID)
	if err != nil {
		return err
	}
	if err := s.accounts.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	removed := s.docs.RemoveStored(ctx, keys)

	s.logger.Info().
		Str("admin_id", adminID.String()).
		Str("user_id", u.ID.String()).
		Str("role", u.Role).
		Int("documents", len(keys)).
		Int("files_removed", removed).
		Msg("user deleted")
	return nil
}

func (s *Service) VerifyDoctor(ctx context.Context, adminID, doctorID uuid.UUID) (*identity.Doctor, error) {
	d, err := s.accounts.VerifyDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("admin_id", adminID.String()).Str("doctor_id", d.ID.String()).Msg("doctor verified")
	return d, nil
}

func (s *Service) PendingVerifications(ctx context.Context) ([]*identity.Doctor, error) {
	return s.accounts.PendingVerifications(ctx)
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	byRole, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := s.accounts.CountDoctors(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := s.docs.CountActiveShares(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalPatients:     byRole[auth.RolePatient],
		TotalDoctors:      byRole[auth.RoleDoctor],
		TotalAdmins:       byRole[auth.RoleAdmin],
		VerifiedDoctors:   doctors.Verified,
		UnverifiedDoctors: doctors.Unverified,
		TotalDocuments:    docs,
		ActiveShares:      shares,
	}
	for _, n := range byRole {
		stats.TotalUsers += n
	}
	return stats, nil
}

func (s *Service) IssueDoctorKey(ctx context.Context, adminID uuid.UUID, req verification.IssueKeyRequest) (*verification.DoctorKey, error) {
	k, err := s.keys.Issue(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("admin_id", adminID.String()).
		Str("registration_number", k.RegistrationNumber).Msg("doctor key issued")
	return k, nil
}

func (s *Service) ListDoctorKeys(ctx context.Context, unusedOnly bool, limit, offset int) ([]*verification.DoctorKey, int, error) {
	return s.keys.List(ctx, unusedOnly, limit, offset)
}
