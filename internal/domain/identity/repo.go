package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	ExistsByAadhaar(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, p *Patient) error
	// AppendMedicalHistory appends in a single statement and returns the
	// resulting history.
	AppendMedicalHistory(ctx context.Context, patientID uuid.UUID, entry MedicalHistoryEntry) ([]MedicalHistoryEntry, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (*Doctor, error)
	ListUnverified(ctx context.Context) ([]*Doctor, error)
	Counts(ctx context.Context) (DoctorCounts, error)
}
