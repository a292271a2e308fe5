// Package consumer projects directory events into the booking-local
// replicas the reservation and slot paths read from.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/d-castillo/trimbook/services/booking-service/internal/storage"
)

const (
	TopicServiceUpserted = "directory.service.upserted.v1"
	TopicWindowUpserted  = "directory.window.upserted.v1"
	TopicSettingsUpdated = "directory.settings.updated.v1"
)

// Topics lists everything the booking projector subscribes to.
var Topics = []string{TopicServiceUpserted, TopicWindowUpserted, TopicSettingsUpdated}

type DirectoryProjector struct {
	replica *storage.ReplicaRepository
	logger  *slog.Logger
}

func NewDirectoryProjector(replica *storage.ReplicaRepository, logger *slog.Logger) *DirectoryProjector {
	return &DirectoryProjector{replica: replica, logger: logger}
}

// Handle applies one directory event. Events are upserts keyed by
// entity id, so replays and out-of-order delivery converge on the
// latest state.
func (p *DirectoryProjector) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicServiceUpserted:
		var evt struct {
			ServiceID       string `json:"service_id"`
			ProviderID      string `json:"provider_id"`
			Name            string `json:"name"`
			Price           string `json:"price"`
			DurationMinutes int    `json:"duration_minutes"`
		}
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode service event: %w", err)
		}
		return p.replica.UpsertService(ctx, storage.ReplicaService{
			ID:              evt.ServiceID,
			ProviderID:      evt.ProviderID,
			Name:            evt.Name,
			Price:           evt.Price,
			DurationMinutes: evt.DurationMinutes,
		})

	case TopicWindowUpserted:
		var evt struct {
			WindowID   string    `json:"window_id"`
			ProviderID string    `json:"provider_id"`
			StartTime  time.Time `json:"start_time"`
			EndTime    time.Time `json:"end_time"`
		}
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode window event: %w", err)
		}
		return p.replica.UpsertWindow(ctx, evt.WindowID, evt.ProviderID, evt.StartTime, evt.EndTime)

	case TopicSettingsUpdated:
		var evt struct {
			ProviderID     string  `json:"provider_id"`
			ClosedWeekdays []int32 `json:"closed_weekdays"`
		}
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode settings event: %w", err)
		}
		return p.replica.UpsertClosedWeekdays(ctx, evt.ProviderID, evt.ClosedWeekdays)

	default:
		p.logger.Warn("ignoring event on unexpected topic", "topic", msg.Topic)
		return nil
	}
}
