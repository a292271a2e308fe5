// Package handlers exposes the provider directory: public browsing of
// providers and their offerings, and provider-owned management of
// services, availability windows and weekly closures. Every mutation
// writes an outbox event so downstream replicas converge.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/d-castillo/trimbook/libs/auth"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/services/directory-service/internal/storage"
)

const (
	topicServiceUpserted  = "directory.service.upserted.v1"
	topicWindowUpserted   = "directory.window.upserted.v1"
	topicSettingsUpdated  = "directory.settings.updated.v1"
	maxServiceNameLength  = 120
	maxDurationMinutes    = 480
	minDurationMinutes    = 5
	maxWindowLength       = 24 * time.Hour
)

type DirectoryHandler struct {
	repo      *storage.Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	jwtSecret string
}

func NewDirectoryHandler(repo *storage.Repository, ob *outbox.Repository, logger *slog.Logger, jwtSecret string) *DirectoryHandler {
	return &DirectoryHandler{repo: repo, outbox: ob, logger: logger, jwtSecret: jwtSecret}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (h *DirectoryHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// requireProvider authenticates the request and checks the provider
// role. Only providers manage directory entries.
func (h *DirectoryHandler) requireProvider(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"), h.jwtSecret)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid credentials"})
		return nil, false
	}
	if claims.Role != auth.RoleProvider {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "provider role required"})
		return nil, false
	}
	return claims, true
}

type providerResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *DirectoryHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			badRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	providers, err := h.repo.ListProviders(r.Context(), limit)
	if err != nil {
		h.internalError(w, err)
		return
	}
	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerResponse{ID: p.ID, DisplayName: p.DisplayName, CreatedAt: p.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "provider not found"})
			return
		}
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, providerResponse{ID: p.ID, DisplayName: p.DisplayName, CreatedAt: p.CreatedAt})
}

type serviceResponse struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	Name            string    `json:"name"`
	Price           string    `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

func validPrice(raw string) bool {
	v, err := strconv.ParseFloat(raw, 64)
	return err == nil && v >= 0 && v < 100000
}

func (h *DirectoryHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "malformed json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxServiceNameLength {
		badRequest(w, "name is required and must be at most 120 characters")
		return
	}
	if !validPrice(req.Price) {
		badRequest(w, "price must be a non-negative decimal")
		return
	}
	if req.DurationMinutes < minDurationMinutes || req.DurationMinutes > maxDurationMinutes {
		badRequest(w, "duration_minutes must be between 5 and 480")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer tx.Rollback(ctx)

	svc := storage.Service{
		ProviderID:      claims.Sub,
		Name:            req.Name,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.repo.InsertService(ctx, tx, &svc); err != nil {
		if err == storage.ErrProviderMissing {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "provider profile not yet provisioned"})
			return
		}
		h.internalError(w, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"service_id":       svc.ID,
		"provider_id":      svc.ProviderID,
		"name":             svc.Name,
		"price":            svc.Price,
		"duration_minutes": svc.DurationMinutes,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "service",
		AggregateID:   svc.ID,
		EventType:     topicServiceUpserted,
		Payload:       payload,
	}); err != nil {
		h.internalError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, serviceResponse{
		ID:              svc.ID,
		ProviderID:      svc.ProviderID,
		Name:            svc.Name,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMinutes,
		CreatedAt:       svc.CreatedAt,
	})
}

func (h *DirectoryHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServices(r.Context(), r.PathValue("id"))
	if err != nil {
		h.internalError(w, err)
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		out = append(out, serviceResponse{
			ID:              svc.ID,
			ProviderID:      svc.ProviderID,
			Name:            svc.Name,
			Price:           svc.Price,
			DurationMinutes: svc.DurationMinutes,
			CreatedAt:       svc.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type windowResponse struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type createWindowRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *DirectoryHandler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	var req createWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "malformed json")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		badRequest(w, "start_time must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		badRequest(w, "end_time must be RFC 3339")
		return
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		badRequest(w, "end_time must be after start_time")
		return
	}
	if end.Sub(start) > maxWindowLength {
		badRequest(w, "window must not exceed 24 hours")
		return
	}
	if start.Before(time.Now().UTC()) {
		badRequest(w, "start_time must be in the future")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer tx.Rollback(ctx)

	win := storage.Window{ProviderID: claims.Sub, StartTime: start, EndTime: end}
	if err := h.repo.InsertWindow(ctx, tx, &win); err != nil {
		if err == storage.ErrProviderMissing {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "provider profile not yet provisioned"})
			return
		}
		h.internalError(w, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"window_id":   win.ID,
		"provider_id": win.ProviderID,
		"start_time":  win.StartTime,
		"end_time":    win.EndTime,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "window",
		AggregateID:   win.ID,
		EventType:     topicWindowUpserted,
		Payload:       payload,
	}); err != nil {
		h.internalError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, windowResponse{
		ID:         win.ID,
		ProviderID: win.ProviderID,
		StartTime:  win.StartTime,
		EndTime:    win.EndTime,
	})
}

func (h *DirectoryHandler) ListWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.repo.ListWindows(r.Context(), r.PathValue("id"), time.Now().UTC())
	if err != nil {
		h.internalError(w, err)
		return
	}
	out := make([]windowResponse, 0, len(windows))
	for _, win := range windows {
		out = append(out, windowResponse{
			ID:         win.ID,
			ProviderID: win.ProviderID,
			StartTime:  win.StartTime,
			EndTime:    win.EndTime,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type settingsRequest struct {
	ClosedWeekdays []int32 `json:"closed_weekdays"`
}

type settingsResponse struct {
	ProviderID     string    `json:"provider_id"`
	ClosedWeekdays []int32   `json:"closed_weekdays"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateSettings replaces the provider's weekly closures. Weekdays use
// Go numbering: Sunday is 0.
func (h *DirectoryHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "malformed json")
		return
	}
	seen := map[int32]bool{}
	for _, d := range req.ClosedWeekdays {
		if d < 0 || d > 6 {
			badRequest(w, "closed_weekdays entries must be between 0 and 6")
			return
		}
		if seen[d] {
			badRequest(w, "closed_weekdays entries must be unique")
			return
		}
		seen[d] = true
	}
	if req.ClosedWeekdays == nil {
		req.ClosedWeekdays = []int32{}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer tx.Rollback(ctx)

	settings := storage.Settings{ProviderID: claims.Sub, ClosedWeekdays: req.ClosedWeekdays}
	if err := h.repo.UpsertSettings(ctx, tx, &settings); err != nil {
		if err == storage.ErrProviderMissing {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "provider profile not yet provisioned"})
			return
		}
		h.internalError(w, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id":     settings.ProviderID,
		"closed_weekdays": settings.ClosedWeekdays,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "settings",
		AggregateID:   settings.ProviderID,
		EventType:     topicSettingsUpdated,
		Payload:       payload,
	}); err != nil {
		h.internalError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		ProviderID:     settings.ProviderID,
		ClosedWeekdays: settings.ClosedWeekdays,
		UpdatedAt:      settings.UpdatedAt,
	})
}

func (h *DirectoryHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetSettings(r.Context(), r.PathValue("id"))
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		ProviderID:     settings.ProviderID,
		ClosedWeekdays: settings.ClosedWeekdays,
		UpdatedAt:      settings.UpdatedAt,
	})
}
