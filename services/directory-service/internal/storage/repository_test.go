package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/services/directory-service/internal/migrations"
)

// Integration tests run only when TEST_DIRECTORY_DATABASE_URL points at a
// disposable Postgres instance. A separate database from the booking tests
// keeps the two services' schema_migrations tables apart.
func testPool(t *testing.T) *db.Pool {
	t.Helper()
	url := os.Getenv("TEST_DIRECTORY_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DIRECTORY_DATABASE_URL not set")
	}
	if err := migrations.Apply(url); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	pool, err := db.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func insertService(t *testing.T, repo *Repository, providerID string) error {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	svc := Service{
		ProviderID:      providerID,
		Name:            "Haircut",
		Price:           "35.00",
		DurationMinutes: 30,
	}
	if err := repo.InsertService(ctx, tx, &svc); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func TestWritesRequireProvisionedProfile(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	providerID := uuid.NewString()

	if err := insertService(t, repo, providerID); err != ErrProviderMissing {
		t.Fatalf("service insert before profile: got %v, want ErrProviderMissing", err)
	}

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	win := Window{ProviderID: providerID, StartTime: start, EndTime: start.Add(2 * time.Hour)}
	if err := repo.InsertWindow(ctx, tx, &win); err != ErrProviderMissing {
		t.Fatalf("window insert before profile: got %v, want ErrProviderMissing", err)
	}
	tx.Rollback(ctx)

	tx, err = repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	settings := Settings{ProviderID: providerID, ClosedWeekdays: []int32{0}}
	if err := repo.UpsertSettings(ctx, tx, &settings); err != ErrProviderMissing {
		t.Fatalf("settings upsert before profile: got %v, want ErrProviderMissing", err)
	}
	tx.Rollback(ctx)

	if err := repo.UpsertProviderProfile(ctx, providerID, "Ada's Salon"); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if err := insertService(t, repo, providerID); err != nil {
		t.Fatalf("service insert after profile: %v", err)
	}
}
