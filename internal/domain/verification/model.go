package verification

import (
	"time"

	"github.com/google/uuid"
)

// AadhaarResult is what an Aadhaar check reports about a number.
type AadhaarResult struct {
	IsValid     bool   `json:"isValid"`
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	YearOfBirth string `json:"yearOfBirth,omitempty"`
}

// DoctorKey is a single-use key handed to a doctor out of band so they can
// register. Registration consumes it.
type DoctorKey struct {
	Key                string     `json:"uniqueKey"`
	Specialization     string     `json:"specialization"`
	RegistrationNumber string     `json:"registrationNumber"`
	IssuedTo           string     `json:"issuedTo,omitempty"`
	IssuedAt           time.Time  `json:"issuedAt"`
	IsUsed             bool       `json:"isUsed"`
	UsedBy             *uuid.UUID `json:"usedBy,omitempty"`
	UsedAt             *time.Time `json:"usedAt,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

// Usable reports whether the key can still be consumed at now.
func (k *DoctorKey) Usable(now time.Time) bool {
	if k.IsUsed {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// KeyCheck is the outcome of validating a key without consuming it.
type KeyCheck struct {
	IsValid            bool   `json:"isValid"`
	Specialization     string `json:"specialization,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

// MaxKeyExpiryDays bounds how far ahead a key may expire.
const MaxKeyExpiryDays = 36500

// IssueKeyRequest describes a key to issue. ExpiresInDays of zero means the
// key never expires.
type IssueKeyRequest struct {
	Specialization     string `json:"specialization" validate:"required"`
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
	IssuedTo           string `json:"issuedTo"`
	ExpiresInDays      int    `json:"expiresInDays" validate:"gte=0,lte=36500"`
}
