package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated account. Role never changes after creation.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"userType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the role-specific record linked 1:1 to a User. It is sealed:
// *Patient and *Doctor are the only implementations, and callers switch on
// the concrete type.
type Profile interface {
	OwnerID() uuid.UUID
	sealed()
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type MedicalHistoryEntry struct {
	Condition     string     `json:"condition" validate:"required"`
	DiagnosedDate *time.Time `json:"diagnosedDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

type Patient struct {
	ID               uuid.UUID             `json:"id"`
	UserID           uuid.UUID             `json:"userId"`
	Name             string                `json:"name"`
	Email            string                `json:"email"`
	AadhaarNumber    string                `json:"aadhaarNumber"`
	AadhaarVerified  bool                  `json:"aadhaarVerified"`
	Phone            string                `json:"phone,omitempty"`
	Address          string                `json:"address,omitempty"`
	DateOfBirth      *time.Time            `json:"dateOfBirth,omitempty"`
	EmergencyContact *EmergencyContact     `json:"emergencyContact,omitempty"`
	MedicalHistory   []MedicalHistoryEntry `json:"medicalHistory"`
	CreatedAt        time.Time             `json:"createdAt"`
}

func (p *Patient) OwnerID() uuid.UUID { return p.UserID }
func (*Patient) sealed() {}

type Doctor struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"userId"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Specialization     string     `json:"specialization"`
	RegistrationNumber string     `json:"registrationNumber"`
	VerificationKey    string     `json:"-"`
	VerificationDate   *time.Time `json:"verificationDate,omitempty"`
	IsVerified         bool       `json:"isVerified"`
	Phone              string     `json:"phone,omitempty"`
	Address            string     `json:"address,omitempty"`
	Qualification      string     `json:"qualification,omitempty"`
	Experience         *int       `json:"experience,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func (d *Doctor) OwnerID() uuid.UUID { return d.UserID }
func (*Doctor) sealed() {}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	Name           string `json:"name" validate:"required"`
	Role           string `json:"userType" validate:"required,oneof=patient doctor"`
	AadhaarNumber  string `json:"aadhaarNumber"`
	DoctorKey      string `json:"doctorKey"`
	Specialization string `json:"specialization"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// ProfileView pairs an account with its profile for GET/PUT /api/profiles.
type ProfileView struct {
	User    *User   `json:"user"`
	Profile Profile `json:"profile"`
}

// ProfileUpdate carries the editable fields of PUT /api/profiles. Nil means
// unchanged. Fields that do not apply to the caller's role are ignored.
type ProfileUpdate struct {
	Name             *string           `json:"name" validate:"omitempty,min=1"`
	Email            *string           `json:"email" validate:"omitempty,email"`
	Phone            *string           `json:"phone"`
	Address          *string           `json:"address"`
	DateOfBirth      *string           `json:"dateOfBirth"`
	EmergencyContact *EmergencyContact `json:"emergencyContact"`
	Specialization   *string           `json:"specialization"`
	Qualification    *string           `json:"qualification"`
	Experience       *int              `json:"experience" validate:"omitempty,gte=0"`
}

// DoctorCounts is used by the admin statistics.
type DoctorCounts struct {
	Verified   int
	Unverified int
}
