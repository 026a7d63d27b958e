package verification

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

type keyRepoPG struct{ pool *pgxpool.Pool }

func NewKeyRepoPG(pool *pgxpool.Pool) KeyRepository { return &keyRepoPG{pool: pool} }

func (r *keyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const keyCols = `unique_key, specialization, registration_number, COALESCE(issued_to, ''),
	issued_at, is_used, used_by, used_at, expires_at`

func scanKey(row pgx.Row) (*DoctorKey, error) {
	var k DoctorKey
	err := row.Scan(&k.Key, &k.Specialization, &k.RegistrationNumber, &k.IssuedTo,
		&k.IssuedAt, &k.IsUsed, &k.UsedBy, &k.UsedAt, &k.ExpiresAt)
	return &k, err
}

func (r *keyRepoPG) Create(ctx context.Context, k *DoctorKey) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_verification_keys (unique_key, specialization, registration_number,
			issued_to, issued_at, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		k.Key, k.Specialization, k.RegistrationNumber, k.IssuedTo, k.IssuedAt, k.ExpiresAt)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Conflict("verification key already exists")
	}
	return err
}

func (r *keyRepoPG) GetByKey(ctx context.Context, key string) (*DoctorKey, error) {
	k, err := scanKey(r.conn(ctx).QueryRow(ctx,
		`SELECT `+keyCols+` FROM doctor_verification_keys WHERE unique_key = $1`, key))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("verification key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get verification key: %w", err)
	}
	return k, nil
}

func (r *keyRepoPG) List(ctx context.Context, unusedOnly bool, limit, offset int) ([]*DoctorKey, int, error) {
	where := ""
	if unusedOnly {
		where = " WHERE NOT is_used"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_verification_keys`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+keyCols+` FROM doctor_verification_keys`+where+
		` ORDER BY issued_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoctorKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, k)
	}
	return items, total, rows.Err()
}

func (r *keyRepoPG) MarkUsed(ctx context.Context, key string, userID uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_verification_keys SET is_used = TRUE, used_by = $2, used_at = $3
		WHERE unique_key = $1 AND NOT is_used`, key, userID, at)
	if err != nil {
		return fmt.Errorf("mark verification key used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("verification key has already been used")
	}
	return nil
}
