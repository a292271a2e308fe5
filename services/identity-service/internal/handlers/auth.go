// Package handlers implements registration, login and session
// management for the marketplace identity provider.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/d-castillo/trimbook/libs/auth"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/services/identity-service/internal/audit"
	"github.com/d-castillo/trimbook/services/identity-service/internal/sessions"
	"github.com/d-castillo/trimbook/services/identity-service/internal/storage"
)

const topicUserRegistered = "identity.user.registered.v1"

const minPasswordLength = 8

type AuthHandler struct {
	users     *storage.UserRepository
	sessions  *sessions.Repository
	audit     *audit.Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(users *storage.UserRepository, sess *sessions.Repository, aud *audit.Repository, ob *outbox.Repository, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &AuthHandler{
		users:     users,
		sessions:  sess,
		audit:     aud,
		outbox:    ob,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *AuthHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (h *AuthHandler) sign(u storage.User) (string, error) {
	now := time.Now()
	return auth.SignHS256(auth.Claims{
		Sub:  u.ID,
		Name: u.DisplayName,
		Role: u.Role,
		Exp:  now.Add(h.tokenTTL).Unix(),
		Iat:  now.Unix(),
	}, h.jwtSecret)
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed json"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email"})
		return
	}
	if req.DisplayName == "" || len(req.DisplayName) > 120 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "display_name is required and must be at most 120 characters"})
		return
	}
	if req.Role != auth.RoleClient && req.Role != auth.RoleProvider {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "role must be client or provider"})
		return
	}
	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "password must be at least 8 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, err)
		return
	}

	ctx := r.Context()
	tx, err := h.users.Begin(ctx)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer tx.Rollback(ctx)

	user := storage.User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		PasswordHash: string(hash),
	}
	if err := h.users.Insert(ctx, tx, &user); err != nil {
		if err == storage.ErrEmailTaken {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
			return
		}
		h.internalError(w, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":      user.ID,
		"display_name": user.DisplayName,
		"role":         user.Role,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     topicUserRegistered,
		Payload:       payload,
	}); err != nil {
		h.internalError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.internalError(w, err)
		return
	}

	h.audit.Record(ctx, user.ID, "user.registered", map[string]any{"role": user.Role})
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed json"})
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err == storage.ErrNotFound {
			h.audit.Record(ctx, "", "login.failed", map[string]any{"reason": "unknown email"})
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
			return
		}
		h.internalError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.audit.Record(ctx, user.ID, "login.failed", map[string]any{"reason": "bad password"})
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	access, err := h.sign(user)
	if err != nil {
		h.internalError(w, err)
		return
	}
	refresh, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.audit.Record(ctx, user.ID, "login.succeeded", nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(user),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token is required"})
		return
	}

	ctx := r.Context()
	userID, err := h.sessions.Consume(ctx, req.RefreshToken)
	if err != nil {
		if err == sessions.ErrInvalidSession {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired session"})
			return
		}
		h.internalError(w, err)
		return
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	access, err := h.sign(user)
	if err != nil {
		h.internalError(w, err)
		return
	}
	refresh, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(user),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"), h.jwtSecret)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid credentials"})
		return
	}

	ctx := r.Context()
	if err := h.sessions.RevokeAll(ctx, claims.Sub); err != nil {
		h.internalError(w, err)
		return
	}
	h.audit.Record(ctx, claims.Sub, "logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"), h.jwtSecret)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid credentials"})
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.Sub)
	if err != nil {
		if err == storage.ErrNotFound {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
			return
		}
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
