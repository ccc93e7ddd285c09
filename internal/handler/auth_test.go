package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bierserv/api/internal/auth"
	"github.com/bierserv/api/internal/config"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/handler"
	"github.com/bierserv/api/internal/middleware"
)

// --- Mocks ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[strings.ToLower(email)]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) UpdateUserProfile(_ context.Context, arg database.UpdateUserProfileParams) (database.User, error) {
	u, ok := m.userByID[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	if arg.FullName.Valid {
		u.FullName = arg.FullName.String
	}
	if arg.HashedPassword.Valid {
		u.HashedPassword = arg.HashedPassword.String
	}
	m.addUser(u)
	return u, nil
}

type mockRevoker struct {
	keys map[string]time.Duration
}

func newMockRevoker() *mockRevoker {
	return &mockRevoker{keys: make(map[string]time.Duration)}
}

func (m *mockRevoker) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	m.keys[key] = ttl
	return nil
}

func (m *mockRevoker) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.keys[key]
	return ok, nil
}

func (m *mockRevoker) RevokedTokenKey(jti string) string {
	return "revoked:" + jti
}

// --- Helpers ---

func makeStaffUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		Email:          "garcom@bier.test",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Waiter",
		Role:           auth.RoleWaiter,
		IsActive:       true,
	}
}

func setupAuthRouter(store *mockAuthStore, revoker handler.TokenRevoker) *chi.Mux {
	h := handler.NewAuthHandler(store, revoker, config.JWTConfig{
		Secret:     testJWTSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterMeRoutes(r)
	})
	return r
}

func loginTokens(t *testing.T, r http.Handler) (string, string) {
	t.Helper()
	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "garcom@bier.test",
		"password": "correct-password",
	})
	assertStatus(t, rr, http.StatusOK)
	resp := decodeResponse(t, rr)
	return resp["access_token"].(string), resp["refresh_token"].(string)
}

// --- Login ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t))
	r := setupAuthRouter(store, nil)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "garcom@bier.test",
		"password": "correct-password",
	})
	assertStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	access, _ := resp["access_token"].(string)
	if access == "" {
		t.Fatal("expected non-empty access_token")
	}
	claims, err := auth.ValidateToken(testJWTSecret, access)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Role != auth.RoleWaiter {
		t.Errorf("role claim: got %q, want waiter", claims.Role)
	}
	if resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}
	user := resp["user"].(map[string]interface{})
	if _, leaked := user["hashed_password"]; leaked {
		t.Error("hashed_password must not be returned")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t))
	r := setupAuthRouter(store, nil)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "garcom@bier.test",
		"password": "wrong-password",
	})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, rr, "invalid credentials")
}

func TestLogin_UserNotFound(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore(), nil)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "nobody@bier.test",
		"password": "whatever",
	})
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_Validation(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore(), nil)

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing password", map[string]string{"email": "a@b.test"}, "password is required"},
		{"bad email", map[string]string{"email": "nope", "password": "x"}, "email must be a valid email"},
		{"unknown field", map[string]string{"email": "a@b.test", "password": "x", "pin": "1234"}, "invalid request body"},
		{"not json", "{", "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, r, "POST", "/auth/login", tt.body)
			assertStatus(t, rr, http.StatusBadRequest)
			assertError(t, rr, tt.want)
		})
	}
}

// --- Refresh / Logout ---

func TestRefresh_IssuesNewPairAndRevokesOld(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t))
	revoker := newMockRevoker()
	r := setupAuthRouter(store, revoker)

	_, refresh := loginTokens(t, r)

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusOK)
	if len(revoker.keys) != 1 {
		t.Fatalf("revoked keys: got %d, want 1", len(revoker.keys))
	}

	rr = doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, rr, "refresh token revoked")
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t))
	r := setupAuthRouter(store, nil)

	access, _ := loginTokens(t, r)
	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": access})
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRefresh_UnknownUser(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore(), nil)

	token, _, err := auth.GenerateRefreshToken(testJWTSecret, uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": token})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, rr, "user not found")
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t))
	revoker := newMockRevoker()
	r := setupAuthRouter(store, revoker)

	_, refresh := loginTokens(t, r)

	rr := doRequest(t, r, "POST", "/auth/logout", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusNoContent)

	for _, ttl := range revoker.keys {
		if ttl <= 0 || ttl > time.Hour {
			t.Errorf("revocation ttl: got %v, want within the token lifetime", ttl)
		}
	}

	rr = doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogout_InvalidToken(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore(), newMockRevoker())

	rr := doRequest(t, r, "POST", "/auth/logout", map[string]string{"refresh_token": "garbage"})
	assertStatus(t, rr, http.StatusUnauthorized)
}

// --- Me ---

func TestMe_ReturnsCurrentUser(t *testing.T) {
	store := newMockAuthStore()
	u := makeStaffUser(t)
	store.addUser(u)
	r := setupAuthRouter(store, nil)

	rr := doAuthRequest(t, r, "GET", "/auth/me", nil, testUser{ID: u.ID, Role: u.Role})
	assertStatus(t, rr, http.StatusOK)
	if got := decodeResponse(t, rr)["email"]; got != u.Email {
		t.Errorf("email: got %v, want %s", got, u.Email)
	}
}

func TestMe_RequiresToken(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore(), nil)

	rr := doRequest(t, r, "GET", "/auth/me", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestUpdateMe_ChangesNameAndPassword(t *testing.T) {
	store := newMockAuthStore()
	u := makeStaffUser(t)
	store.addUser(u)
	r := setupAuthRouter(store, nil)

	rr := doAuthRequest(t, r, "PATCH", "/auth/me", map[string]string{
		"full_name": "  Novo Nome ",
		"password":  "a-new-password",
	}, testUser{ID: u.ID, Role: u.Role})
	assertStatus(t, rr, http.StatusOK)

	updated := store.userByID[u.ID]
	if updated.FullName != "Novo Nome" {
		t.Errorf("full_name: got %q, want %q", updated.FullName, "Novo Nome")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.HashedPassword), []byte("a-new-password")); err != nil {
		t.Error("password was not re-hashed")
	}
}

func TestUpdateMe_Validation(t *testing.T) {
	store := newMockAuthStore()
	u := makeStaffUser(t)
	store.addUser(u)
	r := setupAuthRouter(store, nil)
	me := testUser{ID: u.ID, Role: u.Role}

	rr := doAuthRequest(t, r, "PATCH", "/auth/me", map[string]string{}, me)
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "nothing to update")

	rr = doAuthRequest(t, r, "PATCH", "/auth/me", map[string]string{"password": "short"}, me)
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "password must be at least 8")

	rr = doAuthRequest(t, r, "PATCH", "/auth/me", map[string]string{"full_name": "   "}, me)
	assertStatus(t, rr, http.StatusBadRequest)
}
