package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/services/booking-service/internal/availability"
	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
	"github.com/d-castillo/trimbook/services/booking-service/internal/storage"
)

const (
	topicAppointmentReserved  = "booking.appointment.reserved.v1"
	topicAppointmentConfirmed = "booking.appointment.confirmed.v1"
	topicAppointmentCancelled = "booking.appointment.cancelled.v1"
	topicAppointmentCompleted = "booking.appointment.completed.v1"
)

const maxSlotRangeDays = 31

type BookingHandler struct {
	appointments *storage.AppointmentRepository
	replica      *storage.ReplicaRepository
	outbox       *outbox.Repository
	logger       *slog.Logger
	jwtSecret    string
}

func NewBookingHandler(appointments *storage.AppointmentRepository, replica *storage.ReplicaRepository, ob *outbox.Repository, logger *slog.Logger, jwtSecret string) *BookingHandler {
	return &BookingHandler{
		appointments: appointments,
		replica:      replica,
		outbox:       ob,
		logger:       logger,
		jwtSecret:    jwtSecret,
	}
}

type appointmentResponse struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	ProviderID      string    `json:"provider_id"`
	ServiceID       string    `json:"service_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	Price           string    `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		ClientID:        a.ClientID,
		ProviderID:      a.ProviderID,
		ServiceID:       a.ServiceID,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          string(a.Status),
		Price:           a.Price,
		DurationMinutes: a.DurationMinutes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func appointmentPayload(a model.Appointment) map[string]any {
	return map[string]any{
		"appointment_id":   a.ID,
		"client_id":        a.ClientID,
		"provider_id":      a.ProviderID,
		"service_id":       a.ServiceID,
		"start_time":       a.StartTime,
		"end_time":         a.EndTime,
		"status":           string(a.Status),
		"price":            a.Price,
		"duration_minutes": a.DurationMinutes,
	}
}

type reserveRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
}

// Reserve creates a pending appointment on a provider's slot. The
// database exclusion constraint decides races: exactly one of two
// concurrent reservations for the same slot commits.
func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.jwtSecret)
	if !ok {
		return
	}

	var req reserveRequest
	if f := decodeJSON(r, &req); f != nil {
		writeFault(w, f)
		return
	}
	providerID, f := parseUUID("provider_id", req.ProviderID)
	if f != nil {
		writeFault(w, f)
		return
	}
	serviceID, f := parseUUID("service_id", req.ServiceID)
	if f != nil {
		writeFault(w, f)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeFault(w, fault.New(fault.InvalidArgument, "start_time", "must be RFC 3339"))
		return
	}
	start = start.UTC()

	if f := model.ValidateReserve(claims.Sub, providerID, start, time.Now().UTC()); f != nil {
		writeFault(w, f)
		return
	}

	ctx := r.Context()
	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback(ctx)

	svc, err := h.replica.GetService(ctx, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeFault(w, fault.New(fault.InvalidReference, "service_id", "unknown service"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if svc.ProviderID != providerID {
		writeFault(w, fault.New(fault.InvalidReference, "service_id", "service is not offered by this provider"))
		return
	}

	appt := model.Appointment{
		ClientID:        claims.Sub,
		ProviderID:      providerID,
		ServiceID:       serviceID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		Status:          model.StatusPending,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMinutes,
	}
	if err := h.appointments.Insert(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			writeFault(w, fault.New(fault.Conflict, "slot", "time slot is already booked"))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	if err := h.emit(ctx, tx, appt, topicAppointmentReserved, nil); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, model.AuthorizeConfirm, model.StatusConfirmed, topicAppointmentConfirmed)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, model.AuthorizeCancel, model.StatusCancelled, topicAppointmentCancelled)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, model.AuthorizeComplete, model.StatusCompleted, topicAppointmentCompleted)
}

func (h *BookingHandler) applyTransition(w http.ResponseWriter, r *http.Request, authorize func(model.Appointment, string) *fault.Fault, to model.Status, eventType string) {
	claims, ok := requireClaims(w, r, h.jwtSecret)
	if !ok {
		return
	}
	id, f := parseUUID("appointment_id", r.PathValue("id"))
	if f != nil {
		writeFault(w, f)
		return
	}

	ctx := r.Context()
	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback(ctx)

	appt, err := h.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeFault(w, fault.New(fault.NotFound, "appointment", "not found"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if f := authorize(appt, claims.Sub); f != nil {
		writeFault(w, f)
		return
	}

	if err := h.appointments.SetStatus(ctx, tx, id, to); err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt.Status = to

	var extra map[string]any
	if to == model.StatusCancelled {
		extra = map[string]any{"cancelled_by": claims.Sub}
	}
	if err := h.emit(ctx, tx, appt, eventType, extra); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) emit(ctx context.Context, tx pgx.Tx, appt model.Appointment, eventType string, extra map[string]any) error {
	payload := appointmentPayload(appt)
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       raw,
	})
}

// List returns the appointments the authenticated user participates
// in, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.jwtSecret)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeFault(w, fault.New(fault.InvalidArgument, "limit", "must be between 1 and 200"))
			return
		}
		limit = n
	}

	appts, err := h.appointments.ListByActor(r.Context(), claims.Sub, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type slotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Slots lists the open slots for a provider's service over a date
// range. Public: no credentials required.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	providerID, f := parseUUID("provider_id", r.PathValue("id"))
	if f != nil {
		writeFault(w, f)
		return
	}
	serviceID, f := parseUUID("service_id", r.URL.Query().Get("service_id"))
	if f != nil {
		writeFault(w, f)
		return
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)

	fromDay := today
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeFault(w, fault.New(fault.InvalidArgument, "from", "must be YYYY-MM-DD"))
			return
		}
		fromDay = d
	}
	toDay := fromDay.AddDate(0, 0, 6)
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeFault(w, fault.New(fault.InvalidArgument, "to", "must be YYYY-MM-DD"))
			return
		}
		toDay = d
	}

	if fromDay.Before(today) {
		writeFault(w, fault.New(fault.InvalidArgument, "from", "must not be in the past"))
		return
	}
	if toDay.Before(fromDay) {
		writeFault(w, fault.New(fault.InvalidArgument, "to", "must not precede from"))
		return
	}
	// to is inclusive, so the queried range ends the following midnight.
	rangeStart := fromDay
	rangeEnd := toDay.AddDate(0, 0, 1)
	if rangeEnd.Sub(rangeStart) > maxSlotRangeDays*24*time.Hour {
		writeFault(w, fault.New(fault.InvalidArgument, "to", "range must not exceed 31 days"))
		return
	}

	ctx := r.Context()
	svc, err := h.replica.GetService(ctx, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeFault(w, fault.New(fault.InvalidReference, "service_id", "unknown service"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if svc.ProviderID != providerID {
		writeFault(w, fault.New(fault.InvalidReference, "service_id", "service is not offered by this provider"))
		return
	}

	windows, err := h.replica.ListWindows(ctx, providerID, rangeStart, rangeEnd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	closed, err := h.replica.ClosedWeekdays(ctx, providerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	active, err := h.appointments.ListActive(ctx, providerID, rangeStart, rangeEnd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	busy := make([]availability.Interval, 0, len(active))
	for _, a := range active {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	slots := availability.Slots(windows, closed, duration, busy, now, rangeStart, rangeEnd)

	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{StartTime: s.Start, EndTime: s.End})
	}
	writeJSON(w, http.StatusOK, out)
}
