package relationships

import (
	"context"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/domain/identity"
)

// Repository stores doctor/patient pairs. Both directions are projections of
// the same rows.
type Repository interface {
	// Add inserts the pair and reports false when it already existed.
	Add(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	Remove(ctx context.Context, doctorID, patientID uuid.UUID) error
	PatientsOf(ctx context.Context, doctorID uuid.UUID) ([]*identity.Patient, error)
	DoctorsOf(ctx context.Context, patientID uuid.UUID) ([]*identity.Doctor, error)
}
