package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	// GetByID returns the document with its grants in grant order.
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Document, error)
	ListSharedWith(ctx context.Context, granteeID uuid.UUID, now time.Time) ([]*SharedDocument, error)
	Count(ctx context.Context) (int, error)
}

// ShareRepository mutates grants with single statements only.
type ShareRepository interface {
	// Upsert creates the grant or overwrites granted_at and expires_at of the
	// existing one for the same grantee.
	Upsert(ctx context.Context, docID, granteeID uuid.UUID, grantedAt time.Time, expiresAt *time.Time) error
	// Delete removes the grant and reports whether one existed.
	Delete(ctx context.Context, docID, granteeID uuid.UUID) (bool, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

type AccessLogRepository interface {
	Append(ctx context.Context, e *AccessLogEntry) error
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]*AccessLogEntry, error)
	DeleteByDocument(ctx context.Context, docID uuid.UUID) error
}
