package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Dosada05/badminton-platform/db"
)

// NewPostgres starts a throwaway postgres:16 container with the schema
// applied. The test is skipped under -short or when no container runtime is
// reachable.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := start(ctx, tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	t.Cleanup(func() {
		tc.CleanupContainer(t, container)
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=test password=test dbname=testdb sslmode=disable TimeZone=UTC",
		host, port.Port(),
	)

	sqlDB, err := db.Connect(dsn, 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(ctx, sqlDB); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return sqlDB
}

// SeedAccount inserts an account row directly.
func SeedAccount(t *testing.T, sqlDB *sql.DB, id, gender string) {
	t.Helper()
	_, err := sqlDB.Exec(
		`INSERT INTO accounts (id, display_name, gender) VALUES ($1, $2, $3)`,
		id, id, gender,
	)
	if err != nil {
		t.Fatalf("Failed to seed account %s: %v", id, err)
	}
}
