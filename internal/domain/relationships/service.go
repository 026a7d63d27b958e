package relationships

import (
	"context"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// Profiles resolves doctor and patient profiles by profile id.
type Profiles interface {
	DoctorByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Service struct {
	repo     Repository
	profiles Profiles
}

func NewService(repo Repository, profiles Profiles) *Service {
	return &Service{repo: repo, profiles: profiles}
}

// pair loads both profiles and checks that caller is a party to the link.
// Admins may manage any pair.
func (s *Service) pair(ctx context.Context, caller Caller, link Link) error {
	doctor, err := s.profiles.DoctorByID(ctx, link.DoctorID)
	if err != nil {
		return err
	}
	patient, err := s.profiles.PatientByID(ctx, link.PatientID)
	if err != nil {
		return err
	}
	switch caller.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		if doctor.UserID == caller.UserID {
			return nil
		}
	case auth.RolePatient:
		if patient.UserID == caller.UserID {
			return nil
		}
	}
	return apperr.Forbidden("you can only manage your own relationships")
}

// Connect links a doctor and a patient. Linking an existing pair is a
// Conflict.
func (s *Service) Connect(ctx context.Context, caller Caller, link Link) error {
	if err := s.pair(ctx, caller, link); err != nil {
		return err
	}
	added, err := s.repo.Add(ctx, link.DoctorID, link.PatientID)
	if err != nil {
		return err
	}
	if !added {
		return apperr.Conflict("relationship already exists")
	}
	return nil
}

// Disconnect unlinks a doctor and a patient. Removing a pair that does not
// exist succeeds.
func (s *Service) Disconnect(ctx context.Context, caller Caller, link Link) error {
	if err := s.pair(ctx, caller, link); err != nil {
		return err
	}
	return s.repo.Remove(ctx, link.DoctorID, link.PatientID)
}

// PatientsOf lists the patients linked to doctorID. Visible to the doctor
// and to admins.
func (s *Service) PatientsOf(ctx context.Context, caller Caller, doctorID uuid.UUID) ([]*identity.Patient, error) {
	doctor, err := s.profiles.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleAdmin && doctor.UserID != caller.UserID {
		return nil, apperr.Forbidden("you can only view your own patients")
	}
	return s.repo.PatientsOf(ctx, doctorID)
}

// DoctorsOf lists the doctors linked to patientID. Visible to the patient
// and to admins.
func (s *Service) DoctorsOf(ctx context.Context, caller Caller, patientID uuid.UUID) ([]*identity.Doctor, error) {
	patient, err := s.profiles.PatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleAdmin && patient.UserID != caller.UserID {
		return nil, apperr.Forbidden("you can only view your own doctors")
	}
	return s.repo.DoctorsOf(ctx, patientID)
}
