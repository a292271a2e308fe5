// Package sweeper promotes confirmed appointments to completed once
// their end time has passed, so clients become eligible to review
// without the provider clicking through every visit.
package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
	"github.com/d-castillo/trimbook/services/booking-service/internal/storage"
)

const topicAppointmentCompleted = "booking.appointment.completed.v1"

type Sweeper struct {
	pool         *db.Pool
	appointments *storage.AppointmentRepository
	outbox       *outbox.Repository
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
}

func New(pool *db.Pool, appointments *storage.AppointmentRepository, ob *outbox.Repository, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		pool:         pool,
		appointments: appointments,
		outbox:       ob,
		logger:       logger,
		interval:     interval,
		batchSize:    100,
	}
}

// Run sweeps until ctx is cancelled. Safe to run on every instance:
// FOR UPDATE SKIP LOCKED keeps concurrent sweeps from double-handling
// a row.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("completion sweep failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	elapsed, err := s.appointments.FetchElapsedConfirmed(ctx, tx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return err
	}
	if len(elapsed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(elapsed))
	for _, appt := range elapsed {
		ids = append(ids, appt.ID)
		appt.Status = model.StatusCompleted
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"client_id":      appt.ClientID,
			"provider_id":    appt.ProviderID,
			"service_id":     appt.ServiceID,
			"start_time":     appt.StartTime,
			"end_time":       appt.EndTime,
			"status":         string(appt.Status),
			"completed_by":   "sweep",
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     topicAppointmentCompleted,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}

	if err := s.appointments.MarkCompleted(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("completed elapsed appointments", "count", len(ids))
	return nil
}
