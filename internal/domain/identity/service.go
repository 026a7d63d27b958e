package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/domain/verification"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

// KeyVerifier checks and consumes doctor verification keys.
type KeyVerifier interface {
	Check(ctx context.Context, key string) (*verification.KeyCheck, error)
	Consume(ctx context.Context, key string, userID uuid.UUID) error
}

type Service struct {
	users    UserRepository
	patients PatientRepository
	doctors  DoctorRepository
	tx       db.Transactor
	tokens   *auth.TokenService
	revoked  auth.RevocationStore
	aadhaar  verification.AadhaarVerifier
	keys     KeyVerifier
	now      func() time.Time
}

func NewService(users UserRepository, patients PatientRepository, doctors DoctorRepository,
	tx db.Transactor, tokens *auth.TokenService, revoked auth.RevocationStore,
	aadhaar verification.AadhaarVerifier, keys KeyVerifier) *Service {
	return &Service{
		users:    users,
		patients: patients,
		doctors:  doctors,
		tx:       tx,
		tokens:   tokens,
		revoked:  revoked,
		aadhaar:  aadhaar,
		keys:     keys,
		now:      time.Now,
	}
}

const minPasswordLength = 6

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) issue(u *User, message string) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Message: message, Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// Register creates an account and its profile after the role's external
// check passes. Account, profile and doctor-key consumption commit together;
// the key is consumed only once the profile row exists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.AadhaarNumber = strings.TrimSpace(req.AadhaarNumber)
	req.DoctorKey = strings.TrimSpace(req.DoctorKey)

	if req.Email == "" {
		return nil, apperr.Invalid("email is required")
	}
	if req.Name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Invalid("password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("user already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	var keyCheck *verification.KeyCheck
	switch req.Role {
	case auth.RolePatient:
		if req.AadhaarNumber == "" {
			return nil, apperr.Invalid("aadhaar number is required for patient registration")
		}
		taken, err := s.patients.ExistsByAadhaar(ctx, req.AadhaarNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("this aadhaar number is already registered")
		}
		res, err := s.aadhaar.Verify(ctx, req.AadhaarNumber)
		if err != nil {
			return nil, err
		}
		if !res.IsValid {
			return nil, apperr.Invalid("invalid aadhaar number")
		}
	case auth.RoleDoctor:
		if req.DoctorKey == "" {
			return nil, apperr.Invalid("doctor verification key is required")
		}
		check, err := s.keys.Check(ctx, req.DoctorKey)
		if err != nil {
			return nil, err
		}
		if !check.IsValid {
			return nil, apperr.Invalid("invalid doctor verification key")
		}
		keyCheck = check
	default:
		return nil, apperr.Invalid("invalid user type")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}

		switch req.Role {
		case auth.RolePatient:
			return s.patients.Create(ctx, &Patient{
				UserID:          user.ID,
				Name:            user.Name,
				Email:           user.Email,
				AadhaarNumber:   req.AadhaarNumber,
				AadhaarVerified: true,
				MedicalHistory:  []MedicalHistoryEntry{},
			})
		case auth.RoleDoctor:
			specialization := keyCheck.Specialization
			if specialization == "" {
				specialization = strings.TrimSpace(req.Specialization)
			}
			verifiedAt := s.now().UTC()
			if err := s.doctors.Create(ctx, &Doctor{
				UserID:             user.ID,
				Name:               user.Name,
				Email:              user.Email,
				Specialization:     specialization,
				RegistrationNumber: keyCheck.RegistrationNumber,
				VerificationKey:    req.DoctorKey,
				VerificationDate:   &verifiedAt,
				IsVerified:         true,
			}); err != nil {
				return err
			}
			return s.keys.Consume(ctx, req.DoctorKey, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user, "User registered successfully")
}

// CreateAdmin bootstraps an administrator account. Registration over HTTP
// never creates admins.
func (s *Service) CreateAdmin(ctx context.Context, email, password, name string) (*User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return nil, apperr.Invalid("email and name are required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Invalid("password must be at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{ID: uuid.New(), Email: email, PasswordHash: hash, Name: name, Role: auth.RoleAdmin}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login fails with the same Invalid error for an unknown email and a wrong
// password.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Invalid("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return nil, apperr.Invalid("invalid credentials")
	}
	return s.issue(u, "")
}

// Logout revokes the token described by claims until it would expire.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return apperr.Invalid("token cannot be revoked")
	}
	if s.revoked == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) DoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// profileFor loads the profile matching the account's role. Admins have none.
func (s *Service) profileFor(ctx context.Context, u *User) (Profile, error) {
	switch u.Role {
	case auth.RolePatient:
		return s.patients.GetByUserID(ctx, u.ID)
	case auth.RoleDoctor:
		return s.doctors.GetByUserID(ctx, u.ID)
	default:
		return nil, apperr.NotFound("profile not found")
	}
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.profileFor(ctx, u)
	if err != nil {
		return nil, err
	}
	return &ProfileView{User: u, Profile: p}, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// UpdateProfile edits the account and its profile in one transaction.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*ProfileView, error) {
	var dob *time.Time
	if upd.DateOfBirth != nil && *upd.DateOfBirth != "" {
		t, err := time.Parse("2006-01-02", *upd.DateOfBirth)
		if err != nil {
			return nil, apperr.Invalid("dateOfBirth must be formatted as YYYY-MM-DD")
		}
		dob = &t
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, apperr.Invalid("name must not be empty")
	}
	if upd.Experience != nil && *upd.Experience < 0 {
		return nil, apperr.Invalid("experience must not be negative")
	}

	var view *ProfileView
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		p, err := s.profileFor(ctx, u)
		if err != nil {
			return err
		}

		applyString(&u.Name, upd.Name)
		if upd.Email != nil {
			u.Email = normalizeEmail(*upd.Email)
			if u.Email == "" {
				return apperr.Invalid("email must not be empty")
			}
		}
		if upd.Name != nil || upd.Email != nil {
			if err := s.users.Update(ctx, u); err != nil {
				return err
			}
		}

		switch p := p.(type) {
		case *Patient:
			p.Name, p.Email = u.Name, u.Email
			applyString(&p.Phone, upd.Phone)
			applyString(&p.Address, upd.Address)
			if upd.DateOfBirth != nil {
				p.DateOfBirth = dob
			}
			if upd.EmergencyContact != nil {
				p.EmergencyContact = upd.EmergencyContact
			}
			if err := s.patients.Update(ctx, p); err != nil {
				return err
			}
		case *Doctor:
			p.Name, p.Email = u.Name, u.Email
			applyString(&p.Phone, upd.Phone)
			applyString(&p.Address, upd.Address)
			applyString(&p.Specialization, upd.Specialization)
			applyString(&p.Qualification, upd.Qualification)
			if upd.Experience != nil {
				p.Experience = upd.Experience
			}
			if err := s.doctors.Update(ctx, p); err != nil {
				return err
			}
		}

		view = &ProfileView{User: u, Profile: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// AddMedicalHistory appends an entry to the caller's patient record.
func (s *Service) AddMedicalHistory(ctx context.Context, userID uuid.UUID, entry MedicalHistoryEntry) ([]MedicalHistoryEntry, error) {
	entry.Condition = strings.TrimSpace(entry.Condition)
	if entry.Condition == "" {
		return nil, apperr.Invalid("condition is required")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.profileFor(ctx, u)
	if err != nil {
		return nil, err
	}
	switch p := p.(type) {
	case *Patient:
		return s.patients.AppendMedicalHistory(ctx, p.ID, entry)
	case *Doctor:
		return nil, apperr.Forbidden("only patients have a medical history")
	default:
		return nil, apperr.NotFound("profile not found")
	}
}

// -- Administration --

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	switch role {
	case "", auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin:
	default:
		return nil, 0, apperr.Invalid("invalid user type filter: %s", role)
	}
	return s.users.List(ctx, role, limit, offset)
}

// DeleteUser removes the account; the profile and relationships go with it.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

func (s *Service) VerifyDoctor(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	return s.doctors.MarkVerified(ctx, doctorID, s.now().UTC())
}

func (s *Service) PendingVerifications(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.ListUnverified(ctx)
}

func (s *Service) CountUsers(ctx context.Context) (map[string]int, error) {
	return s.users.CountByRole(ctx)
}

func (s *Service) CountDoctors(ctx context.Context) (DoctorCounts, error) {
	return s.doctors.Counts(ctx)
}
