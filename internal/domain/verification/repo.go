package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type KeyRepository interface {
	Create(ctx context.Context, k *DoctorKey) error
	GetByKey(ctx context.Context, key string) (*DoctorKey, error)
	List(ctx context.Context, unusedOnly bool, limit, offset int) ([]*DoctorKey, int, error)
	// MarkUsed consumes an unused key. A key that is missing or already used
	// reports Conflict, so two registrations can never both consume it.
	MarkUsed(ctx context.Context, key string, userID uuid.UUID, at time.Time) error
}
