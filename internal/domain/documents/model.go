package documents

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Document categories.
const (
	CategoryPrescription   = "prescription"
	CategoryLabReport      = "labReport"
	CategoryMedicalHistory = "medicalHistory"
	CategoryOther          = "other"
)

var validCategories = map[string]bool{
	CategoryPrescription:   true,
	CategoryLabReport:      true,
	CategoryMedicalHistory: true,
	CategoryOther:          true,
}

// Access log actions.
const (
	ActionView     = "view"
	ActionDownload = "download"
	ActionShare    = "share"
	ActionRevoke   = "revoke"
)

// Document is an uploaded medical file. Path is the blob store key and never
// leaves the server.
type Document struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner"`
	Filename     string       `json:"filename"`
	OriginalName string       `json:"originalName"`
	Path         string       `json:"-"`
	ContentType  string       `json:"contentType"`
	Size         int64        `json:"size"`
	Category     string       `json:"category"`
	UploadedAt   time.Time    `json:"uploadDate"`
	SharedWith   []ShareGrant `json:"sharedWith"`
}

// ShareGrant gives one user read access to a document until ExpiresAt, or
// indefinitely when ExpiresAt is nil. A document holds at most one grant per
// grantee.
type ShareGrant struct {
	UserID    uuid.UUID  `json:"user"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	GrantedAt time.Time  `json:"sharedAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// SharedDocument is a document seen from a grantee's side.
type SharedDocument struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner"`
	OwnerName    string     `json:"ownerName"`
	OwnerEmail   string     `json:"ownerEmail"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"originalName"`
	ContentType  string     `json:"contentType"`
	Size         int64      `json:"size"`
	Category     string     `json:"category"`
	UploadedAt   time.Time  `json:"uploadDate"`
	SharedAt     time.Time  `json:"sharedAt"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

// AccessLogEntry records one action on a document. Entries are append-only;
// ActorID may refer to a user that no longer exists.
type AccessLogEntry struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"documentId"`
	ActorID    uuid.UUID `json:"user"`
	Action     string    `json:"action"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Upload is a file received from a client.
type Upload struct {
	OriginalName string
	ContentType  string
	Category     string
	Content      io.Reader
}

// MaxExpiryDays bounds a share duration to roughly a hundred years.
const MaxExpiryDays = 36500

// ShareRequest is the body of POST /api/documents/:id/share.
type ShareRequest struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	ExpiryDays     *int   `json:"expiryDays" validate:"omitempty,gt=0,lte=36500"`
}
