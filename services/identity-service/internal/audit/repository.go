// Package audit records security-relevant identity events.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/d-castillo/trimbook/libs/db"
)

type Repository struct {
	pool   *db.Pool
	logger *slog.Logger
}

func NewRepository(pool *db.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// Record writes an audit row. Failures are logged, never surfaced: an
// audit outage must not block logins.
func (r *Repository) Record(ctx context.Context, userID, action string, meta map[string]any) {
	payload, err := json.Marshal(meta)
	if err != nil {
		payload = []byte("{}")
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, meta)
		VALUES (NULLIF($1, '')::uuid, $2, $3)`,
		userID, action, payload); err != nil {
		r.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
