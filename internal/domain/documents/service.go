package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/blobstore"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/notify"
)

// Users resolves accounts for sharing and notifications.
type Users interface {
	UserByEmail(ctx context.Context, email string) (*identity.User, error)
	CurrentUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

var allowedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".doc": true, ".docx": true,
}

type Service struct {
	docs     DocumentRepository
	shares   ShareRepository
	logs     AccessLogRepository
	users    Users
	store    blobstore.Store
	tx       db.Transactor
	notifier notify.Notifier
	logger   zerolog.Logger
	maxSize  int64
	now      func() time.Time
}

func NewService(docs DocumentRepository, shares ShareRepository, logs AccessLogRepository,
	users Users, store blobstore.Store, tx db.Transactor, notifier notify.Notifier,
	logger zerolog.Logger, maxSize int64) *Service {
	return &Service{
		docs:     docs,
		shares:   shares,
		logs:     logs,
		users:    users,
		store:    store,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		maxSize:  maxSize,
		now:      time.Now,
	}
}

// storedName strips any directory part a client may have sent and replaces
// characters that are awkward in storage keys.
func storedName(original string) string {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '/', r == ':':
			return -1
		}
		return r
	}, name)
}

// Upload stores the file and records its metadata. The stored file is
// removed again if the metadata cannot be written.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, in Upload) (*Document, error) {
	if in.Content == nil || strings.TrimSpace(in.OriginalName) == "" {
		return nil, apperr.Invalid("no file uploaded")
	}
	ext := strings.ToLower(filepath.Ext(in.OriginalName))
	if !allowedExtensions[ext] {
		return nil, apperr.Invalid("only PDF, JPG, PNG, DOC and DOCX files are allowed")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = CategoryOther
	}
	if !validCategories[category] {
		return nil, apperr.Invalid("invalid category: %s", category)
	}

	now := s.now().UTC()
	filename := fmt.Sprintf("%d-%s", now.UnixMilli(), storedName(in.OriginalName))
	key := ownerID.String() + "/" + filename

	obj, err := s.store.Put(ctx, key, in.Content, s.maxSize)
	if errors.Is(err, blobstore.ErrFileTooLarge) {
		return nil, apperr.Invalid("file exceeds the maximum size of %d bytes", s.maxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = obj.ContentType
	}

	doc := &Document{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Filename:     filename,
		OriginalName: in.OriginalName,
		Path:         key,
		ContentType:  contentType,
		Size:         obj.Size,
		Category:     category,
		UploadedAt:   now,
		SharedWith:   []ShareGrant{},
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}

	s.logger.Info().Str("document_id", doc.ID.String()).Str("owner_id", ownerID.String()).
		Int64("size", doc.Size).Msg("document uploaded")
	return doc, nil
}

// Open checks access, opens the stored file and records the view or
// download. Nothing is logged when the file cannot be opened. The caller
// closes the returned reader.
func (s *Service) Open(ctx context.Context, docID, requesterID uuid.UUID, ip, action string) (*Document, io.ReadCloser, error) {
	if action != ActionView && action != ActionDownload {
		return nil, nil, fmt.Errorf("open document: unsupported action %q", action)
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	if !CanAccess(doc, requesterID, now) {
		return nil, nil, apperr.Forbidden("access denied")
	}

	rc, _, err := s.store.Open(ctx, doc.Path)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, apperr.NotFound("file not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}

	if err := s.logs.Append(ctx, &AccessLogEntry{
		DocumentID: doc.ID,
		ActorID:    requesterID,
		Action:     action,
		IPAddress:  ip,
		CreatedAt:  now,
	}); err != nil {
		rc.Close()
		return nil, nil, err
	}
	return doc, rc, nil
}

// ownedDocument loads docID and checks that requester owns it.
func (s *Service) ownedDocument(ctx context.Context, docID, requesterID uuid.UUID, forbidden string) (*Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != requesterID {
		return nil, apperr.Forbidden("%s", forbidden)
	}
	return doc, nil
}

// Share grants the user registered under req.RecipientEmail access to the document.
// Sharing again with the same user replaces the earlier grant. The grant and
// its log entry commit together; the e-mail notice is best effort.
func (s *Service) Share(ctx context.Context, docID, ownerID uuid.UUID, req ShareRequest, ip string) (*ShareGrant, error) {
	if req.ExpiryDays != nil && (*req.ExpiryDays <= 0 || *req.ExpiryDays > MaxExpiryDays) {
		return nil, apperr.Invalid("expiryDays must be between 1 and %d", MaxExpiryDays)
	}
	doc, err := s.ownedDocument(ctx, docID, ownerID, "only the owner can share this document")
	if err != nil {
		return nil, err
	}
	recipient, err := s.users.UserByEmail(ctx, req.RecipientEmail)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("recipient not found")
	}
	if err != nil {
		return nil, err
	}
	if recipient.ID == ownerID {
		return nil, apperr.Invalid("cannot share a document with yourself")
	}

	now := s.now().UTC()
	grant := &ShareGrant{
		UserID:    recipient.ID,
		Name:      recipient.Name,
		Email:     recipient.Email,
		GrantedAt: now,
		ExpiresAt: expiryFor(now, req.ExpiryDays),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.shares.Upsert(ctx, doc.ID, recipient.ID, grant.GrantedAt, grant.ExpiresAt); err != nil {
			return err
		}
		return s.logs.Append(ctx, &AccessLogEntry{
			DocumentID: doc.ID,
			ActorID:    ownerID,
			Action:     ActionShare,
			IPAddress:  ip,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyShared(ctx, doc, ownerID, recipient, grant.ExpiresAt)
	return grant, nil
}

func (s *Service) notifyShared(ctx context.Context, doc *Document, ownerID uuid.UUID, recipient *identity.User, expiresAt *time.Time) {
	if s.notifier == nil {
		return
	}
	ownerName := ""
	if owner, err := s.users.CurrentUser(ctx, ownerID); err == nil {
		ownerName = owner.Name
	}
	err := s.notifier.DocumentShared(ctx, notify.ShareNotice{
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Name,
		OwnerName:      ownerName,
		DocumentName:   doc.OriginalName,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("share notification failed")
	}
}

// Revoke removes granteeID's grant. Revoking a grant that does not exist is
// not an error; the revoke is logged either way.
func (s *Service) Revoke(ctx context.Context, docID, ownerID, granteeID uuid.UUID, ip string) error {
	doc, err := s.ownedDocument(ctx, docID, ownerID, "only the owner can revoke access")
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.shares.Delete(ctx, doc.ID, granteeID); err != nil {
			return err
		}
		return s.logs.Append(ctx, &AccessLogEntry{
			DocumentID: doc.ID,
			ActorID:    ownerID,
			Action:     ActionRevoke,
			IPAddress:  ip,
			CreatedAt:  now,
		})
	})
}

// Delete removes a document owned by requesterID together with its grants
// and access log.
func (s *Service) Delete(ctx context.Context, docID, requesterID uuid.UUID) error {
	doc, err := s.ownedDocument(ctx, docID, requesterID, "only the owner can delete this document")
	if err != nil {
		return err
	}
	return s.remove(ctx, doc)
}

// remove deletes the stored file best effort, then the metadata.
func (s *Service) remove(ctx context.Context, doc *Document) error {
	if err := s.store.Delete(ctx, doc.Path); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("failed to remove stored file")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.logs.DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		return s.docs.Delete(ctx, doc.ID)
	})
}

// StoredKeys lists the blob keys of every document ownerID owns.
func (s *Service) StoredKeys(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		keys = append(keys, doc.Path)
	}
	return keys, nil
}

// RemoveStored deletes stored files whose metadata rows are already gone.
// Failures are logged and skipped. It returns the number of files removed.
func (s *Service) RemoveStored(ctx context.Context, keys []string) int {
	removed := 0
	for _, key := range keys {
		err := s.store.Delete(ctx, key)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, blobstore.ErrBlobNotFound):
		default:
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored file")
		}
	}
	return removed
}

func (s *Service) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	return s.docs.ListByOwner(ctx, ownerID)
}

// ListSharedWithMe returns documents with a grant for userID that is still
// active.
func (s *Service) ListSharedWithMe(ctx context.Context, userID uuid.UUID) ([]*SharedDocument, error) {
	return s.docs.ListSharedWith(ctx, userID, s.now().UTC())
}

// AccessLogs lists the access log of a document, newest first. Owner only.
func (s *Service) AccessLogs(ctx context.Context, docID, requesterID uuid.UUID) ([]*AccessLogEntry, error) {
	doc, err := s.ownedDocument(ctx, docID, requesterID, "only the owner can view the access log")
	if err != nil {
		return nil, err
	}
	return s.logs.ListByDocument(ctx, doc.ID)
}

func (s *Service) CountDocuments(ctx context.Context) (int, error) {
	return s.docs.Count(ctx)
}

func (s *Service) CountActiveShares(ctx context.Context) (int, error) {
	return s.shares.CountActive(ctx, s.now().UTC())
}
