package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// KeyService issues and checks doctor verification keys.
type KeyService struct {
	keys KeyRepository
	now  func() time.Time
}

func NewKeyService(keys KeyRepository) *KeyService {
	return &KeyService{keys: keys, now: time.Now}
}

// generateKey returns 16 random bytes as 32 hex characters.
func generateKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *KeyService) Issue(ctx context.Context, req IssueKeyRequest) (*DoctorKey, error) {
	req.Specialization = strings.TrimSpace(req.Specialization)
	req.RegistrationNumber = strings.TrimSpace(req.RegistrationNumber)
	if req.Specialization == "" {
		return nil, apperr.Invalid("specialization is required")
	}
	if req.RegistrationNumber == "" {
		return nil, apperr.Invalid("registration number is required")
	}
	if req.ExpiresInDays < 0 {
		return nil, apperr.Invalid("expiry must not be negative")
	}
	if req.ExpiresInDays > MaxKeyExpiryDays {
		return nil, apperr.Invalid("expiry must be at most %d days", MaxKeyExpiryDays)
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	k := &DoctorKey{
		Key:                key,
		Specialization:     req.Specialization,
		RegistrationNumber: req.RegistrationNumber,
		IssuedTo:           strings.TrimSpace(req.IssuedTo),
		IssuedAt:           now,
	}
	if req.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, req.ExpiresInDays)
		k.ExpiresAt = &exp
	}

	if err := s.keys.Create(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

// Check validates key without consuming it. Unknown, used and expired keys
// all come back as IsValid=false.
func (s *KeyService) Check(ctx context.Context, key string) (*KeyCheck, error) {
	if strings.TrimSpace(key) == "" {
		return &KeyCheck{IsValid: false}, nil
	}
	k, err := s.keys.GetByKey(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return &KeyCheck{IsValid: false}, nil
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "doctor key verification unavailable")
	}
	if !k.Usable(s.now()) {
		return &KeyCheck{IsValid: false}, nil
	}
	return &KeyCheck{
		IsValid:            true,
		Specialization:     k.Specialization,
		RegistrationNumber: k.RegistrationNumber,
	}, nil
}

// Consume marks key used by userID. Call it inside the registration
// transaction, after the doctor profile has been written.
func (s *KeyService) Consume(ctx context.Context, key string, userID uuid.UUID) error {
	return s.keys.MarkUsed(ctx, key, userID, s.now().UTC())
}

func (s *KeyService) List(ctx context.Context, unusedOnly bool, limit, offset int) ([]*DoctorKey, int, error) {
	return s.keys.List(ctx, unusedOnly, limit, offset)
}
