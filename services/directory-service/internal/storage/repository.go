package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/d-castillo/trimbook/libs/db"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrProviderMissing means a write referenced a provider whose profile
	// row has not been projected from identity yet.
	ErrProviderMissing = errors.New("provider profile missing")
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

type ProviderProfile struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

type Service struct {
	ID              string
	ProviderID      string
	Name            string
	Price           string
	DurationMinutes int
	CreatedAt       time.Time
}

type Window struct {
	ID         string
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
	CreatedAt  time.Time
}

type Settings struct {
	ProviderID     string
	ClosedWeekdays []int32
	UpdatedAt      time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) UpsertProviderProfile(ctx context.Context, id, displayName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_profiles (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		id, displayName)
	return err
}

func (r *Repository) ListProviders(ctx context.Context, limit int) ([]ProviderProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, display_name, created_at
		FROM provider_profiles
		ORDER BY display_name
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderProfile
	for rows.Next() {
		var p ProviderProfile
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetProvider(ctx context.Context, id string) (ProviderProfile, error) {
	var p ProviderProfile
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, display_name, created_at
		FROM provider_profiles
		WHERE id = $1`, id)
	if err := row.Scan(&p.ID, &p.DisplayName, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProviderProfile{}, ErrNotFound
		}
		return ProviderProfile{}, err
	}
	return p, nil
}

func (r *Repository) InsertService(ctx context.Context, tx pgx.Tx, svc *Service) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO services (provider_id, name, price, duration_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		svc.ProviderID, svc.Name, svc.Price, svc.DurationMinutes)
	if err := row.Scan(&svc.ID, &svc.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return ErrProviderMissing
		}
		return err
	}
	return nil
}

func (r *Repository) ListServices(ctx context.Context, providerID string) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, name, price::text, duration_minutes, created_at
		FROM services
		WHERE provider_id = $1
		ORDER BY name`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Price, &svc.DurationMinutes, &svc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r *Repository) InsertWindow(ctx context.Context, tx pgx.Tx, w *Window) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO availability_windows (provider_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at`,
		w.ProviderID, w.StartTime, w.EndTime)
	if err := row.Scan(&w.ID, &w.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return ErrProviderMissing
		}
		return err
	}
	return nil
}

func (r *Repository) ListWindows(ctx context.Context, providerID string, from time.Time) ([]Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, start_time, end_time, created_at
		FROM availability_windows
		WHERE provider_id = $1 AND end_time > $2
		ORDER BY start_time`, providerID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.ID, &w.ProviderID, &w.StartTime, &w.EndTime, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertSettings(ctx context.Context, tx pgx.Tx, s *Settings) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO provider_settings (provider_id, closed_weekdays, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (provider_id) DO UPDATE SET
			closed_weekdays = EXCLUDED.closed_weekdays,
			updated_at = now()
		RETURNING updated_at`,
		s.ProviderID, s.ClosedWeekdays)
	if err := row.Scan(&s.UpdatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return ErrProviderMissing
		}
		return err
	}
	return nil
}

func (r *Repository) GetSettings(ctx context.Context, providerID string) (Settings, error) {
	s := Settings{ProviderID: providerID, ClosedWeekdays: []int32{}}
	row := r.pool.QueryRow(ctx, `
		SELECT closed_weekdays, updated_at
		FROM provider_settings
		WHERE provider_id = $1`, providerID)
	if err := row.Scan(&s.ClosedWeekdays, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return Settings{}, err
	}
	return s, nil
}
