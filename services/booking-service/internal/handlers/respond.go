package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/d-castillo/trimbook/libs/auth"
	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
)

type errorPayload struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.InvalidArgument:
		return http.StatusBadRequest
	case fault.InvalidReference:
		return http.StatusUnprocessableEntity
	case fault.Forbidden:
		return http.StatusForbidden
	case fault.NotFound:
		return http.StatusNotFound
	case fault.InvalidState, fault.Conflict, fault.Duplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeFault(w http.ResponseWriter, f *fault.Fault) {
	writeJSON(w, statusForKind(f.Kind), errorResponse{Error: errorPayload{
		Kind:    string(f.Kind),
		Subject: f.Subject,
		Message: f.Msg,
	}})
}

// writeError maps domain faults onto status codes and hides everything
// else behind a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if f, ok := fault.Of(err); ok {
		writeFault(w, f)
		return
	}
	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorPayload{
		Kind:    "internal",
		Message: "internal error",
	}})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorPayload{
		Kind:    "unauthenticated",
		Message: "missing or invalid credentials",
	}})
}

func requireClaims(w http.ResponseWriter, r *http.Request, secret string) (*auth.Claims, bool) {
	claims, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"), secret)
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}
	return claims, true
}

func parseUUID(field, value string) (string, *fault.Fault) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fault.New(fault.InvalidArgument, field, "must be a valid uuid")
	}
	return id.String(), nil
}

func decodeJSON(r *http.Request, dst any) *fault.Fault {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fault.New(fault.InvalidArgument, "body", "malformed json")
	}
	return nil
}
