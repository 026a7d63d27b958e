package documents

import (
	"time"

	"github.com/google/uuid"
)

// CanAccess reports whether requester may read doc at now: the owner always
// can, anyone else needs a grant that has not expired. A grant expiring
// exactly at now is expired. There is no role override.
func CanAccess(doc *Document, requester uuid.UUID, now time.Time) bool {
	if doc.OwnerID == requester {
		return true
	}
	for _, g := range doc.SharedWith {
		if g.UserID == requester {
			return g.active(now)
		}
	}
	return false
}

func (g ShareGrant) active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// expiryFor converts a share duration in days to an absolute expiry. now is
// UTC, so a day is always 24 hours.
func expiryFor(now time.Time, days *int) *time.Time {
	if days == nil {
		return nil
	}
	t := now.AddDate(0, 0, *days)
	return &t
}
