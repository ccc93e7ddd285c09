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

	"github.com/bierserv/api/internal/database"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// CategoryHandler handles menu category endpoints.
type CategoryHandler struct {
	store CategoryStore
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// RegisterReadRoutes registers the staff read endpoints at /categories.
func (h *CategoryHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterWriteRoutes registers the manager endpoints at /categories.
func (h *CategoryHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type categoryRequest struct {
	Name        string  `json:"name" validate:"required,max=80"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   int32   `json:"sort_order" validate:"min=0"`
}

type categoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"image_url"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int32     `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: textPtr(c.Description),
		ImageURL:    textPtr(c.ImageUrl),
		IsActive:    c.IsActive,
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// --- Handlers ---

// List returns all categories, or only active ones with ?active=true.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	cats, err := h.store.ListCategories(r.Context(), activeOnly)
	if err != nil {
		internalError(w, r, err, "list categories")
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCategory(w, r)
	if !ok {
		return
	}

	cat, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		Name:        strings.TrimSpace(req.Name),
		Description: optionalText(deref(req.Description)),
		ImageUrl:    optionalText(deref(req.ImageURL)),
		IsActive:    req.IsActive == nil || *req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "category name already exists")
			return
		}
		internalError(w, r, err, "create category")
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(cat))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	req, ok := decodeCategory(w, r)
	if !ok {
		return
	}

	cat, err := h.store.UpdateCategory(r.Context(), database.UpdateCategoryParams{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: optionalText(deref(req.Description)),
		ImageUrl:    optionalText(deref(req.ImageURL)),
		IsActive:    req.IsActive == nil || *req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "category name already exists")
			return
		}
		internalError(w, r, err, "update category")
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

// Delete removes a category. Categories that still hold products are kept.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	if _, err := h.store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusConflict, "category is in use by products")
			return
		}
		internalError(w, r, err, "delete category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func decodeCategory(w http.ResponseWriter, r *http.Request) (categoryRequest, bool) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	return req, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
