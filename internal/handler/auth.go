package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/bierserv/api/internal/auth"
	"github.com/bierserv/api/internal/config"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/middleware"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	UpdateUserProfile(ctx context.Context, arg database.UpdateUserProfileParams) (database.User, error)
}

// TokenRevoker remembers logged-out refresh tokens. Satisfied by *cache.Client.
type TokenRevoker interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	RevokedTokenKey(jti string) string
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store   AuthStore
	revoker TokenRevoker
	jwt     config.JWTConfig
}

// NewAuthHandler creates a new AuthHandler. revoker may be nil, in which case
// logout cannot invalidate refresh tokens before they expire.
func NewAuthHandler(store AuthStore, revoker TokenRevoker, cfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{store: store, revoker: revoker, jwt: cfg}
}

// RegisterRoutes registers the public auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
}

// RegisterMeRoutes registers the profile endpoints. Mount behind Authenticate.
func (h *AuthHandler) RegisterMeRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
	r.Patch("/auth/me", h.UpdateMe)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type updateMeRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u database.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// --- Handlers ---

// Login handles email + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		internalError(w, r, err, "get user by email")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, r, user)
}

// Refresh exchanges a valid refresh token for a new access + refresh token
// pair. The presented token is revoked.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, err := auth.ValidateRefreshToken(h.jwt.Secret, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if h.isRevoked(r.Context(), rc.TokenID) {
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), rc.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		internalError(w, r, err, "get user for refresh")
		return
	}

	h.revoke(r.Context(), rc)
	h.respondWithTokens(w, r, user)
}

// Logout revokes the given refresh token. The short-lived access token simply
// expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, err := auth.ValidateRefreshToken(h.jwt.Secret, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	h.revoke(r.Context(), rc)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, r, err, "get current user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe handles PATCH /auth/me: full_name and/or password.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FullName == nil && req.Password == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	params := database.UpdateUserProfileParams{ID: claims.UserID}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "full_name must not be blank")
			return
		}
		params.FullName = pgtype.Text{String: name, Valid: true}
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			internalError(w, r, err, "hash password")
			return
		}
		params.HashedPassword = pgtype.Text{String: string(hashed), Valid: true}
	}

	user, err := h.store.UpdateUserProfile(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, r, err, "update profile")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, user database.User) {
	accessToken, err := auth.GenerateToken(h.jwt.Secret, user.ID, user.Role, h.jwt.AccessTTL)
	if err != nil {
		internalError(w, r, err, "generate access token")
		return
	}

	refreshToken, _, err := auth.GenerateRefreshToken(h.jwt.Secret, user.ID, h.jwt.RefreshTTL)
	if err != nil {
		internalError(w, r, err, "generate refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toUserResponse(user),
	})
}

func (h *AuthHandler) isRevoked(ctx context.Context, jti string) bool {
	if h.revoker == nil {
		return false
	}
	revoked, err := h.revoker.Exists(ctx, h.revoker.RevokedTokenKey(jti))
	if err != nil {
		log.Warn().Err(err).Msg("auth: revocation lookup failed")
		return false
	}
	return revoked
}

func (h *AuthHandler) revoke(ctx context.Context, rc *auth.RefreshClaims) {
	if h.revoker == nil {
		return
	}
	ttl := time.Until(rc.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := h.revoker.Set(ctx, h.revoker.RevokedTokenKey(rc.TokenID), "1", ttl); err != nil {
		log.Warn().Err(err).Msg("auth: revoke refresh token failed")
	}
}
