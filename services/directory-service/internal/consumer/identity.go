// Package consumer keeps provider profiles in sync with identity
// registrations.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/d-castillo/trimbook/libs/auth"
	"github.com/d-castillo/trimbook/services/directory-service/internal/storage"
)

const TopicUserRegistered = "identity.user.registered.v1"

type IdentityProjector struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewIdentityProjector(repo *storage.Repository, logger *slog.Logger) *IdentityProjector {
	return &IdentityProjector{repo: repo, logger: logger}
}

// Handle creates a directory profile for each registered provider.
// Client registrations carry no directory presence and are skipped.
func (p *IdentityProjector) Handle(ctx context.Context, msg kafka.Message) error {
	var evt struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode registration event: %w", err)
	}
	if evt.Role != auth.RoleProvider {
		return nil
	}
	return p.repo.UpsertProviderProfile(ctx, evt.UserID, evt.DisplayName)
}
