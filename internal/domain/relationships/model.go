package relationships

import (
	"github.com/google/uuid"
)

// Link is the body of POST and DELETE /api/relationships/doctor-patient.
// Both ids are profile ids, not account ids.
type Link struct {
	DoctorID  uuid.UUID `json:"doctorId" validate:"required"`
	PatientID uuid.UUID `json:"patientId" validate:"required"`
}

// Caller is the authenticated user acting on a relationship.
type Caller struct {
	UserID uuid.UUID
	Role   string
}
