package storage

import (
	"context"
	"time"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/services/booking-service/internal/availability"
)

// ReplicaService is the booking-local projection of a directory
// service offering, kept current by consuming directory events.
type ReplicaService struct {
	ID              string
	ProviderID      string
	Name            string
	Price           string
	DurationMinutes int
}

// ReplicaRepository maintains the read-side copies of directory data
// the booking flow depends on: service offerings, availability windows
// and weekly closures.
type ReplicaRepository struct {
	pool *db.Pool
}

func NewReplicaRepository(pool *db.Pool) *ReplicaRepository {
	return &ReplicaRepository{pool: pool}
}

func (r *ReplicaRepository) UpsertService(ctx context.Context, svc ReplicaService) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO catalog_services (id, provider_id, name, price, duration_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			duration_minutes = EXCLUDED.duration_minutes,
			updated_at = now()`,
		svc.ID, svc.ProviderID, svc.Name, svc.Price, svc.DurationMinutes)
	return err
}

func (r *ReplicaRepository) GetService(ctx context.Context, id string) (ReplicaService, error) {
	var svc ReplicaService
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, provider_id::text, name, price::text, duration_minutes
		FROM catalog_services
		WHERE id = $1`, id)
	err := row.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Price, &svc.DurationMinutes)
	return svc, err
}

func (r *ReplicaRepository) UpsertWindow(ctx context.Context, id, providerID string, start, end time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_windows (id, provider_id, start_time, end_time, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = now()`,
		id, providerID, start, end)
	return err
}

// ListWindows returns the provider's availability windows that touch
// [from, to), ordered by start.
func (r *ReplicaRepository) ListWindows(ctx context.Context, providerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM provider_windows
		WHERE provider_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *ReplicaRepository) UpsertClosedWeekdays(ctx context.Context, providerID string, weekdays []int32) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_settings (provider_id, closed_weekdays, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (provider_id) DO UPDATE SET
			closed_weekdays = EXCLUDED.closed_weekdays,
			updated_at = now()`,
		providerID, weekdays)
	return err
}

// ClosedWeekdays returns the provider's weekly closures as a lookup
// set. A provider with no settings row has none.
func (r *ReplicaRepository) ClosedWeekdays(ctx context.Context, providerID string) (map[time.Weekday]bool, error) {
	var days []int32
	row := r.pool.QueryRow(ctx, `
		SELECT closed_weekdays FROM provider_settings WHERE provider_id = $1`, providerID)
	if err := row.Scan(&days); err != nil {
		if IsNotFound(err) {
			return map[time.Weekday]bool{}, nil
		}
		return nil, err
	}
	out := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		out[time.Weekday(d)] = true
	}
	return out, nil
}
