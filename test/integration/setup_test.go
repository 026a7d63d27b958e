package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/domain/documents"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/db"
)

// DatabaseURLEnv points the suite at an existing Postgres instead of a
// throwaway container. The database must be disposable.
const DatabaseURLEnv = "CARELINK_TEST_DATABASE_URL"

// testDB holds the shared database for the suite.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is initialised once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up postgres: %v\n", err)
		os.Exit(1)
	}
	if tdb == nil {
		fmt.Fprintf(os.Stderr, "skipping integration tests: set %s or install docker\n", DatabaseURLEnv)
		os.Exit(0)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupDatabase connects to DatabaseURLEnv when set and otherwise starts a
// container. It returns a nil testDB when neither is possible.
func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv(DatabaseURLEnv)
	stop := func() {}
	if connStr == "" {
		if !dockerAvailable() {
			return nil, nil, nil
		}
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 8, 1)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	migrationsDir := findMigrationsDir()
	if _, err := db.NewMigrator(pool, migrationsDir).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &testDB{
		Pool:          pool,
		ConnStr:       connStr,
		MigrationsDir: migrationsDir,
	}, func() {
		pool.Close()
		stop()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// aadhaarSeq hands out distinct 12-digit numbers across runs sharing a
// database.
var aadhaarSeq = time.Now().UnixNano() % 1e11

func nextAadhaar() string {
	return fmt.Sprintf("%012d", 1e11+atomic.AddInt64(&aadhaarSeq, 1)%8e11)
}

// dbNow is truncated to what a timestamptz column stores.
func dbNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func createTestUser(t *testing.T, ctx context.Context, role, name string) *identity.User {
	t.Helper()
	u := &identity.User{
		Email:        fmt.Sprintf("%s.%s@example.com", name, uuid.NewString()[:8]),
		PasswordHash: "$2a$10$integrationtestintegrationtestintegrationtestinte",
		Name:         name,
		Role:         role,
	}
	if err := identity.NewUserRepoPG(globalDB.Pool).Create(ctx, u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func createTestPatient(t *testing.T, ctx context.Context, user *identity.User) *identity.Patient {
	t.Helper()
	p := &identity.Patient{
		UserID:        user.ID,
		Name:          user.Name,
		Email:         user.Email,
		AadhaarNumber: nextAadhaar(),
	}
	if err := identity.NewPatientRepoPG(globalDB.Pool).Create(ctx, p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func createTestDoctor(t *testing.T, ctx context.Context, user *identity.User) *identity.Doctor {
	t.Helper()
	d := &identity.Doctor{
		UserID:             user.ID,
		Name:               user.Name,
		Email:              user.Email,
		Specialization:     "Cardiology",
		RegistrationNumber: "MCI-" + uuid.NewString()[:6],
		VerificationKey:    uuid.NewString(),
	}
	if err := identity.NewDoctorRepoPG(globalDB.Pool).Create(ctx, d); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}

func createTestDocument(t *testing.T, ctx context.Context, ownerID uuid.UUID, name string) *documents.Document {
	t.Helper()
	d := &documents.Document{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Filename:     name,
		OriginalName: name,
		Path:         ownerID.String() + "/" + name,
		ContentType:  "application/pdf",
		Size:         8,
		Category:     documents.CategoryLabReport,
		UploadedAt:   dbNow(),
	}
	if err := documents.NewDocumentRepoPG(globalDB.Pool).Create(ctx, d); err != nil {
		t.Fatalf("create document %s: %v", name, err)
	}
	return d
}

// countRows runs a COUNT(*) query with a single argument.
func countRows(t *testing.T, ctx context.Context, query string, arg interface{}) int {
	t.Helper()
	var n int
	if err := globalDB.Pool.QueryRow(ctx, query, arg).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
