package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
)

type ReviewRepository struct {
	pool *db.Pool
}

func NewReviewRepository(pool *db.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id::text, appointment_id::text, client_id::text, provider_id::text,
	rating, COALESCE(comment, ''), created_at`

func scanReview(row pgx.Row) (model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.AppointmentID, &rv.ClientID, &rv.ProviderID,
		&rv.Rating, &rv.Comment, &rv.CreatedAt)
	return rv, err
}

// Insert persists a review. The unique constraint on appointment_id
// rejects a second review for the same appointment; callers detect it
// with IsUniqueViolation.
func (r *ReviewRepository) Insert(ctx context.Context, tx pgx.Tx, rv *model.Review) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO reviews (appointment_id, client_id, provider_id, rating, comment)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id::text, created_at`,
		rv.AppointmentID, rv.ClientID, rv.ProviderID, rv.Rating, rv.Comment)
	return row.Scan(&rv.ID, &rv.CreatedAt)
}

func (r *ReviewRepository) GetByAppointment(ctx context.Context, appointmentID string) (model.Review, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE appointment_id = $1`, appointmentID)
	return scanReview(row)
}

func (r *ReviewRepository) ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Summary computes the live rating aggregate for a provider. A
// provider with no reviews yields (0, 0).
func (r *ReviewRepository) Summary(ctx context.Context, providerID string) (avg float64, count int, err error) {
	row := r.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews
		WHERE provider_id = $1`, providerID)
	err = row.Scan(&avg, &count)
	return avg, count, err
}
