package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardlink/wardlink/internal/domain/institution"
	"github.com/wardlink/wardlink/internal/platform/auth"
	"github.com/wardlink/wardlink/internal/platform/db"
)

// globalPool is the shared test database, initialized once in TestMain.
// Migrations run once against it; individual tests call resetTables for
// isolation (the schema has no foreign keys, so plain TRUNCATE is enough).
var (
	globalPool    *pgxpool.Pool
	globalConnStr string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}

	migrator := db.NewMigrator(pool, findMigrationsDir())
	if _, err := migrator.Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	globalConnStr = connStr
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> repo root
	return filepath.Join(dir, "..", "..", "migrations")
}

func resetTables(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := globalPool.Exec(ctx, `TRUNCATE institutions, approved_users, users, patients, referrals, password_reset_requests`)
	if err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}

func createTestInstitution(t *testing.T, ctx context.Context, name, adminEmail string) *institution.Institution {
	t.Helper()
	repo := institution.NewRepoPG(globalPool)
	inst := &institution.Institution{
		Name:            name,
		AdminEmail:      adminEmail,
		Facilities:      []string{"ICU", "General Ward"},
		City:            "Guwahati",
		State:           "Assam",
		Country:         "India",
		InstitutionType: "Government",
		CreatedBy:       "superadmin@wardlink.example",
	}
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("create test institution %s: %v", name, err)
	}
	return inst
}

func twoInstitutions(t *testing.T, ctx context.Context) (*institution.Institution, *institution.Institution) {
	t.Helper()
	sender := createTestInstitution(t, ctx, "Guwahati Medical College", "admin@gmc.example")
	recipient := createTestInstitution(t, ctx, "Delhi General Hospital", "admin@dgh.example")
	return sender, recipient
}

func doctorActor(institutionID uuid.UUID) auth.Actor {
	return auth.Actor{
		UID:           uuid.NewString(),
		Email:         "doctor@ward.example",
		Name:          "Dr. Sharma",
		Role:          auth.RoleDoctor,
		InstitutionID: institutionID.String(),
	}
}

func superadminActor() auth.Actor {
	return auth.Actor{
		UID:   uuid.NewString(),
		Email: "root@wardlink.example",
		Name:  "Root",
		Role:  auth.RoleSuperAdmin,
	}
}

func countRows(t *testing.T, ctx context.Context, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := globalPool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q: %v", query, err)
	}
	return n
}
