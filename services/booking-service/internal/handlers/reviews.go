package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
	"github.com/d-castillo/trimbook/services/booking-service/internal/model"
	"github.com/d-castillo/trimbook/services/booking-service/internal/rating"
	"github.com/d-castillo/trimbook/services/booking-service/internal/storage"
)

const topicReviewCreated = "booking.review.created.v1"

const maxCommentLength = 2000

type ReviewHandler struct {
	appointments *storage.AppointmentRepository
	reviews      *storage.ReviewRepository
	outbox       *outbox.Repository
	cache        *rating.Cache
	logger       *slog.Logger
	jwtSecret    string
}

func NewReviewHandler(appointments *storage.AppointmentRepository, reviews *storage.ReviewRepository, ob *outbox.Repository, cache *rating.Cache, logger *slog.Logger, jwtSecret string) *ReviewHandler {
	return &ReviewHandler{
		appointments: appointments,
		reviews:      reviews,
		outbox:       ob,
		cache:        cache,
		logger:       logger,
		jwtSecret:    jwtSecret,
	}
}

type reviewResponse struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	ClientID      string    `json:"client_id"`
	ProviderID    string    `json:"provider_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toReviewResponse(rv model.Review) reviewResponse {
	return reviewResponse{
		ID:            rv.ID,
		AppointmentID: rv.AppointmentID,
		ClientID:      rv.ClientID,
		ProviderID:    rv.ProviderID,
		Rating:        rv.Rating,
		Comment:       rv.Comment,
		CreatedAt:     rv.CreatedAt,
	}
}

type submitReviewRequest struct {
	AppointmentID string `json:"appointment_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// Submit attaches a review to a completed appointment. The appointment
// row is locked while the gate runs so a concurrent completion or
// cancellation cannot slip past the status check, and the unique key
// on appointment_id settles duplicate submissions.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, h.jwtSecret)
	if !ok {
		return
	}

	var req submitReviewRequest
	if f := decodeJSON(r, &req); f != nil {
		writeFault(w, f)
		return
	}
	appointmentID, f := parseUUID("appointment_id", req.AppointmentID)
	if f != nil {
		writeFault(w, f)
		return
	}
	if f := model.ValidateRating(req.Rating); f != nil {
		writeFault(w, f)
		return
	}
	if len(req.Comment) > maxCommentLength {
		writeFault(w, fault.New(fault.InvalidArgument, "comment", "too long"))
		return
	}

	ctx := r.Context()
	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback(ctx)

	appt, err := h.appointments.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeFault(w, fault.New(fault.NotFound, "appointment", "not found"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if f := model.AuthorizeReview(appt, claims.Sub); f != nil {
		writeFault(w, f)
		return
	}

	rv := model.Review{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		ProviderID:    appt.ProviderID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	}
	if err := h.reviews.Insert(ctx, tx, &rv); err != nil {
		if storage.IsUniqueViolation(err) {
			writeFault(w, fault.New(fault.Duplicate, "review", "appointment is already reviewed"))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"review_id":      rv.ID,
		"appointment_id": rv.AppointmentID,
		"client_id":      rv.ClientID,
		"provider_id":    rv.ProviderID,
		"rating":         rv.Rating,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "review",
		AggregateID:   rv.ID,
		EventType:     topicReviewCreated,
		Payload:       payload,
	}); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cache.Invalidate(ctx, rv.ProviderID)
	writeJSON(w, http.StatusCreated, toReviewResponse(rv))
}

// GetForAppointment lets a client check whether an appointment has
// been reviewed already.
func (h *ReviewHandler) GetForAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, f := parseUUID("appointment_id", r.PathValue("id"))
	if f != nil {
		writeFault(w, f)
		return
	}

	rv, err := h.reviews.GetByAppointment(r.Context(), appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeFault(w, fault.New(fault.NotFound, "review", "no review for this appointment"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(rv))
}

func (h *ReviewHandler) ListByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, f := parseUUID("provider_id", r.PathValue("id"))
	if f != nil {
		writeFault(w, f)
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

	reviews, err := h.reviews.ListByProvider(r.Context(), providerID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, toReviewResponse(rv))
	}
	writeJSON(w, http.StatusOK, out)
}

// Rating reports a provider's review aggregate. Providers without
// reviews read as average 0 with count 0.
func (h *ReviewHandler) Rating(w http.ResponseWriter, r *http.Request) {
	providerID, f := parseUUID("provider_id", r.PathValue("id"))
	if f != nil {
		writeFault(w, f)
		return
	}

	ctx := r.Context()
	if s, ok := h.cache.Get(ctx, providerID); ok {
		writeJSON(w, http.StatusOK, s)
		return
	}

	avg, count, err := h.reviews.Summary(ctx, providerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	s := rating.Summary{Average: rating.Round1(avg), Count: count}
	h.cache.Set(ctx, providerID, s)
	writeJSON(w, http.StatusOK, s)
}
