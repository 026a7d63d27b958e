package relationships

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Add(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_patients (doctor_id, patient_id) VALUES ($1, $2)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`, doctorID, patientID)
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Remove(ctx context.Context, doctorID, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM doctor_patients WHERE doctor_id = $1 AND patient_id = $2`, doctorID, patientID)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

func (r *repoPG) PatientsOf(ctx context.Context, doctorID uuid.UUID) ([]*identity.Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+identity.PatientColumns+` FROM patients
		WHERE id IN (SELECT patient_id FROM doctor_patients WHERE doctor_id = $1)
		ORDER BY name`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list patients of doctor: %w", err)
	}
	defer rows.Close()

	out := []*identity.Patient{}
	for rows.Next() {
		p, err := identity.ScanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) DoctorsOf(ctx context.Context, patientID uuid.UUID) ([]*identity.Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+identity.DoctorColumns+` FROM doctors
		WHERE id IN (SELECT doctor_id FROM doctor_patients WHERE patient_id = $1)
		ORDER BY name`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list doctors of patient: %w", err)
	}
	defer rows.Close()

	out := []*identity.Doctor{}
	for rows.Next() {
		d, err := identity.ScanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
