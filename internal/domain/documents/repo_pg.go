package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Document Repository ===========

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const documentCols = `id, owner_id, filename, original_name, path, content_type, size, category, uploaded_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.OriginalName, &d.Path,
		&d.ContentType, &d.Size, &d.Category, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	d.SharedWith = []ShareGrant{}
	return &d, nil
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO documents (id, owner_id, filename, original_name, path, content_type, size, category, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING uploaded_at`,
		d.ID, d.OwnerID, d.Filename, d.OriginalName, d.Path, d.ContentType, d.Size, d.Category, d.UploadedAt,
	).Scan(&d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if d.SharedWith == nil {
		d.SharedWith = []ShareGrant{}
	}
	return nil
}

func (r *documentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err := r.attachGrants(ctx, []*Document{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// attachGrants loads the grants of docs in one query, ordered by grant
// sequence.
func (r *documentRepoPG) attachGrants(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Document, len(docs))
	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.document_id, s.grantee_id, COALESCE(u.name, ''), COALESCE(u.email, ''), s.granted_at, s.expires_at
		FROM document_shares s
		LEFT JOIN users u ON u.id = s.grantee_id
		WHERE s.document_id = ANY($1)
		ORDER BY s.seq`, ids)
	if err != nil {
		return fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID uuid.UUID
		var g ShareGrant
		if err := rows.Scan(&docID, &g.UserID, &g.Name, &g.Email, &g.GrantedAt, &g.ExpiresAt); err != nil {
			return fmt.Errorf("scan grant: %w", err)
		}
		if d, ok := byID[docID]; ok {
			d.SharedWith = append(d.SharedWith, g)
		}
	}
	return rows.Err()
}

func (r *documentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document not found")
	}
	return nil
}

func (r *documentRepoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE owner_id = $1 ORDER BY uploaded_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachGrants(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepoPG) ListSharedWith(ctx context.Context, granteeID uuid.UUID, now time.Time) ([]*SharedDocument, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.id, d.owner_id, u.name, u.email, d.filename, d.original_name, d.content_type,
			d.size, d.category, d.uploaded_at, s.granted_at, s.expires_at
		FROM document_shares s
		JOIN documents d ON d.id = s.document_id
		JOIN users u ON u.id = d.owner_id
		WHERE s.grantee_id = $1 AND (s.expires_at IS NULL OR s.expires_at > $2)
		ORDER BY d.uploaded_at DESC`, granteeID, now)
	if err != nil {
		return nil, fmt.Errorf("list shared documents: %w", err)
	}
	defer rows.Close()

	out := []*SharedDocument{}
	for rows.Next() {
		var d SharedDocument
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.OwnerName, &d.OwnerEmail, &d.Filename, &d.OriginalName,
			&d.ContentType, &d.Size, &d.Category, &d.UploadedAt, &d.SharedAt, &d.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan shared document: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *documentRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// =========== Share Repository ===========

type shareRepoPG struct{ pool *pgxpool.Pool }

func NewShareRepoPG(pool *pgxpool.Pool) ShareRepository { return &shareRepoPG{pool: pool} }

func (r *shareRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *shareRepoPG) Upsert(ctx context.Context, docID, granteeID uuid.UUID, grantedAt time.Time, expiresAt *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO document_shares (document_id, grantee_id, granted_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, grantee_id)
		DO UPDATE SET granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at`,
		docID, granteeID, grantedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (r *shareRepoPG) Delete(ctx context.Context, docID, granteeID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM document_shares WHERE document_id = $1 AND grantee_id = $2`, docID, granteeID)
	if err != nil {
		return false, fmt.Errorf("delete grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *shareRepoPG) CountActive(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM document_shares WHERE expires_at IS NULL OR expires_at > $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active grants: %w", err)
	}
	return n, nil
}

// =========== Access Log Repository ===========

type accessLogRepoPG struct{ pool *pgxpool.Pool }

func NewAccessLogRepoPG(pool *pgxpool.Pool) AccessLogRepository { return &accessLogRepoPG{pool: pool} }

func (r *accessLogRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *accessLogRepoPG) Append(ctx context.Context, e *AccessLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO access_logs (id, document_id, actor_id, action, ip_address, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		e.ID, e.DocumentID, e.ActorID, e.Action, e.IPAddress, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (r *accessLogRepoPG) ListByDocument(ctx context.Context, docID uuid.UUID) ([]*AccessLogEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, document_id, actor_id, action, COALESCE(ip_address, ''), created_at
		FROM access_logs WHERE document_id = $1
		ORDER BY created_at DESC`, docID)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	out := []*AccessLogEntry{}
	for rows.Next() {
		var e AccessLogEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.ActorID, &e.Action, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *accessLogRepoPG) DeleteByDocument(ctx context.Context, docID uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM access_logs WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete access logs: %w", err)
	}
	return nil
}
