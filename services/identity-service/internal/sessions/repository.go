// Package sessions stores refresh tokens server-side. Only a SHA-256
// hash of the token ever reaches the database.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/d-castillo/trimbook/libs/db"
)

var ErrInvalidSession = errors.New("invalid or expired session")

type Repository struct {
	pool *db.Pool
	ttl  time.Duration
}

func NewRepository(pool *db.Pool, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Repository{pool: pool, ttl: ttl}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Create mints a refresh token for the user and stores its hash.
func (r *Repository) Create(ctx context.Context, userID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`,
		userID, hashToken(token), time.Now().UTC().Add(r.ttl))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Consume validates a refresh token, revokes it and returns the user
// it belonged to. Rotation: every refresh mints a new token.
func (r *Repository) Consume(ctx context.Context, token string) (string, error) {
	var userID string
	row := r.pool.QueryRow(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING user_id::text`, hashToken(token))
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidSession
		}
		return "", err
	}
	return userID, nil
}

// RevokeAll ends every active session for the user.
func (r *Repository) RevokeAll(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}
