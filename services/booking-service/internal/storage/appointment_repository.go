package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `id::text, client_id::text, provider_id::text, service_id::text,
	start_time, end_time, status, price::text, duration_minutes, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.ClientID, &a.ProviderID, &a.ServiceID,
		&a.StartTime, &a.EndTime, &a.Status, &a.Price, &a.DurationMinutes,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Insert persists a new pending appointment. The exclusion constraint
// on active provider time ranges makes this the serialization point
// for double-booking; callers detect it with IsConflict.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (client_id, provider_id, service_id, start_time, end_time, status, price, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text, created_at, updated_at`,
		a.ClientID, a.ProviderID, a.ServiceID, a.StartTime, a.EndTime, a.Status, a.Price, a.DurationMinutes)
	return row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetForUpdate loads one appointment and holds its row lock for the
// rest of the transaction.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	return err
}

// ListActive returns the pending and confirmed appointments that hold
// provider time inside [from, to). Used as the busy set for slot
// computation.
func (r *AppointmentRepository) ListActive(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListByActor returns appointments the given user participates in,
// newest start first.
func (r *AppointmentRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1 OR provider_id = $1
		ORDER BY start_time DESC
		LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// FetchElapsedConfirmed picks up confirmed appointments whose end time
// has passed, skipping rows another sweeper already holds.
func (r *AppointmentRepository) FetchElapsedConfirmed(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed' AND end_time <= $1
		ORDER BY end_time
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) MarkCompleted(ctx context.Context, tx pgx.Tx, ids []string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments SET status = 'completed', updated_at = now()
		WHERE id = ANY($1::uuid[])`, ids)
	return err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
