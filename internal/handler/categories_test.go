package handler_test

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bierserv/api/internal/auth"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/handler"
	"github.com/bierserv/api/internal/middleware"
)

// --- Mock store ---

type mockCategoryStore struct {
	categories map[uuid.UUID]database.Category
	inUse      map[uuid.UUID]bool
}

func newMockCategoryStore() *mockCategoryStore {
	return &mockCategoryStore{
		categories: make(map[uuid.UUID]database.Category),
		inUse:      make(map[uuid.UUID]bool),
	}
}

func (m *mockCategoryStore) ListCategories(_ context.Context, activeOnly bool) ([]database.Category, error) {
	out := []database.Category{}
	for _, c := range m.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, arg database.CreateCategoryParams) (database.Category, error) {
	c := database.Category{
		ID:          uuid.New(),
		Name:        arg.Name,
		Description: arg.Description,
		ImageUrl:    arg.ImageUrl,
		IsActive:    arg.IsActive,
		SortOrder:   arg.SortOrder,
	}
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) UpdateCategory(_ context.Context, arg database.UpdateCategoryParams) (database.Category, error) {
	c, ok := m.categories[arg.ID]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.Description = arg.Description
	c.ImageUrl = arg.ImageUrl
	c.IsActive = arg.IsActive
	c.SortOrder = arg.SortOrder
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) DeleteCategory(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.categories[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	if m.inUse[id] {
		return uuid.Nil, &pgconn.PgError{Code: "23503"}
	}
	delete(m.categories, id)
	return id, nil
}

func setupCategoryRouter(store *mockCategoryStore) *chi.Mux {
	h := handler.NewCategoryHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/categories", func(r chi.Router) {
		h.RegisterReadRoutes(r)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Group(h.RegisterWriteRoutes)
	})
	return r
}

// --- Tests ---

func TestCategoryList_ActiveFilter(t *testing.T) {
	store := newMockCategoryStore()
	store.categories[uuid.New()] = database.Category{Name: "Lagers", IsActive: true, SortOrder: 1}
	store.categories[uuid.New()] = database.Category{Name: "Sazonais", IsActive: false, SortOrder: 2}
	r := setupCategoryRouter(store)

	rr := doAuthRequest(t, r, "GET", "/categories", nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)
	if got := len(decodeList(t, rr)); got != 2 {
		t.Errorf("all categories: got %d, want 2", got)
	}

	rr = doAuthRequest(t, r, "GET", "/categories?active=true", nil, waiterUser())
	list := decodeList(t, rr)
	if len(list) != 1 || list[0]["name"] != "Lagers" {
		t.Errorf("active categories: got %v", list)
	}
}

func TestCategoryCreate_Valid(t *testing.T) {
	store := newMockCategoryStore()
	r := setupCategoryRouter(store)

	rr := doAuthRequest(t, r, "POST", "/categories", map[string]interface{}{
		"name":        "  IPAs ",
		"description": "Lupuladas",
		"sort_order":  3,
	}, managerUser())
	assertStatus(t, rr, http.StatusCreated)

	resp := decodeResponse(t, rr)
	if resp["name"] != "IPAs" {
		t.Errorf("name: got %v, want IPAs", resp["name"])
	}
	if resp["is_active"] != true {
		t.Errorf("is_active should default to true")
	}
	if resp["image_url"] != nil {
		t.Errorf("image_url: got %v, want null", resp["image_url"])
	}
}

func TestCategoryCreate_Validation(t *testing.T) {
	r := setupCategoryRouter(newMockCategoryStore())

	rr := doAuthRequest(t, r, "POST", "/categories", map[string]interface{}{"name": "   "}, managerUser())
	assertStatus(t, rr, http.StatusBadRequest)

	rr = doAuthRequest(t, r, "POST", "/categories", map[string]interface{}{"name": "X", "sort_order": -1}, managerUser())
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "sort_order must be at least 0")
}

func TestCategoryCreate_WaiterForbidden(t *testing.T) {
	r := setupCategoryRouter(newMockCategoryStore())

	rr := doAuthRequest(t, r, "POST", "/categories", map[string]interface{}{"name": "X"}, waiterUser())
	assertStatus(t, rr, http.StatusForbidden)
}

func TestCategoryUpdate(t *testing.T) {
	store := newMockCategoryStore()
	id := uuid.New()
	store.categories[id] = database.Category{ID: id, Name: "Old", IsActive: true, Description: pgtype.Text{String: "d", Valid: true}}
	r := setupCategoryRouter(store)

	rr := doAuthRequest(t, r, "PUT", "/categories/"+id.String(), map[string]interface{}{
		"name":      "Stouts",
		"is_active": false,
	}, managerUser())
	assertStatus(t, rr, http.StatusOK)

	got := store.categories[id]
	if got.Name != "Stouts" || got.IsActive || got.Description.Valid {
		t.Errorf("updated category: got %+v", got)
	}
}

func TestCategoryUpdate_NotFound(t *testing.T) {
	r := setupCategoryRouter(newMockCategoryStore())

	rr := doAuthRequest(t, r, "PUT", "/categories/"+uuid.NewString(), map[string]interface{}{"name": "X"}, managerUser())
	assertStatus(t, rr, http.StatusNotFound)
}

func TestCategoryDelete_InUse(t *testing.T) {
	store := newMockCategoryStore()
	id := uuid.New()
	store.categories[id] = database.Category{ID: id, Name: "Lagers"}
	store.inUse[id] = true
	r := setupCategoryRouter(store)

	rr := doAuthRequest(t, r, "DELETE", "/categories/"+id.String(), nil, adminUser())
	assertStatus(t, rr, http.StatusConflict)
	assertError(t, rr, "category is in use by products")
}

func TestCategoryDelete(t *testing.T) {
	store := newMockCategoryStore()
	id := uuid.New()
	store.categories[id] = database.Category{ID: id, Name: "Lagers"}
	r := setupCategoryRouter(store)

	rr := doAuthRequest(t, r, "DELETE", "/categories/"+id.String(), nil, adminUser())
	assertStatus(t, rr, http.StatusNoContent)
	if _, ok := store.categories[id]; ok {
		t.Error("category should be deleted")
	}
}
