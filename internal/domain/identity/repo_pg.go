package identity

import (
	"context"
	"fmt"
	"strings"
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

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const userCols = `id, email, password_hash, name, role, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role).Scan(&u.CreatedAt)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Conflict("user already exists")
	}
	return err
}

func (r *userRepoPG) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "email = $1", email)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET name = $2, email = $3 WHERE id = $1`,
		u.ID, u.Name, u.Email)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Conflict("email already in use")
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	where, args := "", []interface{}{}
	if role != "" {
		where = " WHERE role = $1"
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

// PatientColumns is the select list ScanPatient expects.
const PatientColumns = `id, user_id, name, email, aadhaar_number, aadhaar_verified,
	COALESCE(phone, ''), COALESCE(address, ''), date_of_birth, emergency_contact,
	medical_history, created_at`

func ScanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.AadhaarNumber, &p.AadhaarVerified,
		&p.Phone, &p.Address, &p.DateOfBirth, &p.EmergencyContact,
		&p.MedicalHistory, &p.CreatedAt)
	if p.MedicalHistory == nil {
		p.MedicalHistory = []MedicalHistoryEntry{}
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.MedicalHistory == nil {
		p.MedicalHistory = []MedicalHistoryEntry{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, name, email, aadhaar_number, aadhaar_verified,
			phone, address, date_of_birth, emergency_contact, medical_history)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
		RETURNING created_at`,
		p.ID, p.UserID, p.Name, p.Email, p.AadhaarNumber, p.AadhaarVerified,
		p.Phone, p.Address, p.DateOfBirth, p.EmergencyContact, p.MedicalHistory).Scan(&p.CreatedAt)
	if name, dup := db.UniqueViolation(err); dup {
		if strings.Contains(name, "aadhaar") {
			return apperr.Conflict("this aadhaar number is already registered")
		}
		return apperr.Conflict("patient profile already exists")
	}
	return err
}

func (r *patientRepoPG) get(ctx context.Context, where string, arg interface{}) (*Patient, error) {
	p, err := ScanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+PatientColumns+` FROM patients WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.get(ctx, "user_id = $1", userID)
}

func (r *patientRepoPG) ExistsByAadhaar(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE aadhaar_number = $1)`, number).Scan(&exists)
	return exists, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name = $2, email = $3, phone = NULLIF($4, ''), address = NULLIF($5, ''),
			date_of_birth = $6, emergency_contact = $7
		WHERE id = $1`,
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.DateOfBirth, p.EmergencyContact)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) AppendMedicalHistory(ctx context.Context, patientID uuid.UUID, entry MedicalHistoryEntry) ([]MedicalHistoryEntry, error) {
	var history []MedicalHistoryEntry
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET medical_history = medical_history || $2::jsonb
		WHERE id = $1
		RETURNING medical_history`,
		patientID, []MedicalHistoryEntry{entry}).Scan(&history)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("append medical history: %w", err)
	}
	return history, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

// DoctorColumns is the select list ScanDoctor expects.
const DoctorColumns = `id, user_id, name, email, specialization, registration_number,
	verification_key, verification_date, is_verified, COALESCE(phone, ''), COALESCE(address, ''),
	COALESCE(qualification, ''), experience, created_at`

func ScanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialization, &d.RegistrationNumber,
		&d.VerificationKey, &d.VerificationDate, &d.IsVerified, &d.Phone, &d.Address,
		&d.Qualification, &d.Experience, &d.CreatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, name, email, specialization, registration_number,
			verification_key, verification_date, is_verified, phone, address, qualification, experience)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13)
		RETURNING created_at`,
		d.ID, d.UserID, d.Name, d.Email, d.Specialization, d.RegistrationNumber,
		d.VerificationKey, d.VerificationDate, d.IsVerified, d.Phone, d.Address,
		d.Qualification, d.Experience).Scan(&d.CreatedAt)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Conflict("doctor profile already exists")
	}
	return err
}

func (r *doctorRepoPG) get(ctx context.Context, where string, arg interface{}) (*Doctor, error) {
	d, err := ScanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+DoctorColumns+` FROM doctors WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return r.get(ctx, "user_id = $1", userID)
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET name = $2, email = $3, specialization = $4, phone = NULLIF($5, ''),
			address = NULLIF($6, ''), qualification = NULLIF($7, ''), experience = $8
		WHERE id = $1`,
		d.ID, d.Name, d.Email, d.Specialization, d.Phone, d.Address, d.Qualification, d.Experience)
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (*Doctor, error) {
	d, err := ScanDoctor(r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET is_verified = TRUE, verification_date = $2
		WHERE id = $1
		RETURNING `+DoctorColumns, id, at))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("verify doctor: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) ListUnverified(ctx context.Context) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+DoctorColumns+` FROM doctors WHERE NOT is_verified ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := ScanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) Counts(ctx context.Context) (DoctorCounts, error) {
	var c DoctorCounts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_verified), COUNT(*) FILTER (WHERE NOT is_verified)
		FROM doctors`).Scan(&c.Verified, &c.Unverified)
	return c, err
}
