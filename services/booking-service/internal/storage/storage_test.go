package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/services/booking-service/internal/migrations"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
)

// Integration tests run only when TEST_DATABASE_URL points at a
// disposable Postgres instance.
func testPool(t *testing.T) *db.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
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

func insertPending(t *testing.T, repo *AppointmentRepository, providerID string, start time.Time) (model.Appointment, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	appt := model.Appointment{
		ClientID:        uuid.NewString(),
		ProviderID:      providerID,
		ServiceID:       uuid.NewString(),
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		Status:          model.StatusPending,
		Price:           "35.00",
		DurationMinutes: 30,
	}
	if err := repo.Insert(ctx, tx, &appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return appt, nil
}

// reserve is the goroutine-safe variant of insertPending: it reports
// failures as errors instead of failing the test directly.
func reserve(repo *AppointmentRepository, providerID string, start time.Time) error {
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	appt := model.Appointment{
		ClientID:        uuid.NewString(),
		ProviderID:      providerID,
		ServiceID:       uuid.NewString(),
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		Status:          model.StatusPending,
		Price:           "35.00",
		DurationMinutes: 30,
	}
	if err := repo.Insert(ctx, tx, &appt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func TestOverlappingActiveAppointmentsRejected(t *testing.T) {
	pool := testPool(t)
	repo := NewAppointmentRepository(pool)

	providerID := uuid.NewString()
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)

	if _, err := insertPending(t, repo, providerID, start); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := insertPending(t, repo, providerID, start.Add(15*time.Minute))
	if !IsConflict(err) {
		t.Fatalf("overlapping insert: got %v, want exclusion conflict", err)
	}

	// A different provider can hold the same time.
	if _, err := insertPending(t, repo, uuid.NewString(), start); err != nil {
		t.Fatalf("other provider insert: %v", err)
	}
}

func TestConcurrentReservationsOneWins(t *testing.T) {
	pool := testPool(t)
	repo := NewAppointmentRepository(pool)

	providerID := uuid.NewString()
	start := time.Now().UTC().Add(120 * time.Hour).Truncate(time.Minute)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = reserve(repo, providerID, start)
		}()
	}
	wg.Wait()

	var committed, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if committed != 1 || conflicted != 1 {
		t.Fatalf("got %d commits and %d conflicts, want exactly one of each", committed, conflicted)
	}
}

func TestCancelledAppointmentFreesSlot(t *testing.T) {
	pool := testPool(t)
	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	providerID := uuid.NewString()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)

	first, err := insertPending(t, repo, providerID, start)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SetStatus(ctx, tx, first.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := insertPending(t, repo, providerID, start); err != nil {
		t.Fatalf("rebooking a cancelled slot must succeed: %v", err)
	}
}

func TestDuplicateReviewRejected(t *testing.T) {
	pool := testPool(t)
	appointments := NewAppointmentRepository(pool)
	reviews := NewReviewRepository(pool)
	ctx := context.Background()

	appt, err := insertPending(t, appointments, uuid.NewString(), time.Now().UTC().Add(72*time.Hour).Truncate(time.Minute))
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}

	submit := func(rating int) error {
		tx, err := appointments.Begin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer tx.Rollback(ctx)
		rv := model.Review{
			AppointmentID: appt.ID,
			ClientID:      appt.ClientID,
			ProviderID:    appt.ProviderID,
			Rating:        rating,
		}
		if err := reviews.Insert(ctx, tx, &rv); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := submit(5); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if err := submit(4); !IsUniqueViolation(err) {
		t.Fatalf("second review: got %v, want unique violation", err)
	}
}

func TestReviewSummary(t *testing.T) {
	pool := testPool(t)
	appointments := NewAppointmentRepository(pool)
	reviews := NewReviewRepository(pool)
	ctx := context.Background()

	providerID := uuid.NewString()
	base := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Minute)

	for i, rating := range []int{5, 4} {
		appt, err := insertPending(t, appointments, providerID, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("insert appointment %d: %v", i, err)
		}
		tx, err := appointments.Begin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		rv := model.Review{
			AppointmentID: appt.ID,
			ClientID:      appt.ClientID,
			ProviderID:    providerID,
			Rating:        rating,
		}
		if err := reviews.Insert(ctx, tx, &rv); err != nil {
			t.Fatalf("insert review %d: %v", i, err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatal(err)
		}
	}

	avg, count, err := reviews.Summary(ctx, providerID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if avg != 4.5 || count != 2 {
		t.Fatalf("summary = (%v, %d), want (4.5, 2)", avg, count)
	}

	avg, count, err = reviews.Summary(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("empty summary: %v", err)
	}
	if avg != 0 || count != 0 {
		t.Fatalf("empty summary = (%v, %d), want (0, 0)", avg, count)
	}
}
