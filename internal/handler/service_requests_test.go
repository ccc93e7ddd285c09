package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/handler"
	"github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/ws"
)

// --- Mock store ---

type mockServiceRequestStore struct {
	requests map[uuid.UUID]database.ServiceRequest
	lastList database.ListServiceRequestsParams
}

func newMockServiceRequestStore() *mockServiceRequestStore {
	return &mockServiceRequestStore{requests: make(map[uuid.UUID]database.ServiceRequest)}
}

func (m *mockServiceRequestStore) seed(tableNumber string) database.ServiceRequest {
	sr := database.ServiceRequest{
		ID:          uuid.New(),
		TableID:     uuid.New(),
		TableNumber: tableNumber,
		RequestType: "call_waiter",
		Status:      database.ServiceRequestStatusPending,
		CreatedAt:   time.Now(),
	}
	m.requests[sr.ID] = sr
	return sr
}

func (m *mockServiceRequestStore) ListServiceRequests(_ context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error) {
	m.lastList = arg
	var out []database.ServiceRequest
	for _, sr := range m.requests {
		if arg.Status.Valid && string(sr.Status) != arg.Status.String {
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}

func (m *mockServiceRequestStore) GetServiceRequest(_ context.Context, id uuid.UUID) (database.ServiceRequest, error) {
	sr, ok := m.requests[id]
	if !ok {
		return database.ServiceRequest{}, pgx.ErrNoRows
	}
	return sr, nil
}

func (m *mockServiceRequestStore) AcknowledgeServiceRequest(_ context.Context, arg database.AcknowledgeServiceRequestParams) (database.ServiceRequest, error) {
	sr, ok := m.requests[arg.ID]
	if !ok || sr.Status != database.ServiceRequestStatusPending {
		return database.ServiceRequest{}, pgx.ErrNoRows
	}
	sr.Status = database.ServiceRequestStatusAcknowledged
	sr.AcknowledgedBy = arg.AcknowledgedBy
	sr.AcknowledgedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.requests[sr.ID] = sr
	return sr, nil
}

// --- Setup ---

func setupServiceRequestRouter(store *mockServiceRequestStore, pub *recordingPublisher) *chi.Mux {
	h := handler.NewServiceRequestHandler(store, pub)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/service-requests", h.RegisterRoutes)
	})
	return r
}

// --- Tests ---

func TestServiceRequestList(t *testing.T) {
	store := newMockServiceRequestStore()
	store.seed("1")
	done := store.seed("2")
	done.Status = database.ServiceRequestStatusAcknowledged
	store.requests[done.ID] = done
	router := setupServiceRequestRouter(store, &recordingPublisher{})

	rr := doAuthRequest(t, router, http.MethodGet, "/service-requests?status=pending", nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)

	list := decodeList(t, rr)
	if len(list) != 1 || list[0]["table_number"] != "1" {
		t.Fatalf("got %v", list)
	}
	if list[0]["acknowledged_by"] != nil {
		t.Errorf("acknowledged_by: got %v, want null", list[0]["acknowledged_by"])
	}
	if store.lastList.Limit != 20 {
		t.Errorf("limit: got %d, want 20", store.lastList.Limit)
	}
}

func TestServiceRequestListInvalidFilters(t *testing.T) {
	router := setupServiceRequestRouter(newMockServiceRequestStore(), &recordingPublisher{})

	rr := doAuthRequest(t, router, http.MethodGet, "/service-requests?status=done", nil, waiterUser())
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "invalid status")

	rr = doAuthRequest(t, router, http.MethodGet, "/service-requests?limit=zero", nil, waiterUser())
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "limit must be a positive integer")
}

func TestServiceRequestAcknowledge(t *testing.T) {
	store := newMockServiceRequestStore()
	sr := store.seed("7")
	pub := &recordingPublisher{}
	router := setupServiceRequestRouter(store, pub)
	user := waiterUser()

	rr := doAuthRequest(t, router, http.MethodPost, "/service-requests/"+sr.ID.String()+"/acknowledge", nil, user)
	assertStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	if resp["status"] != "acknowledged" || resp["acknowledged_by"] != user.ID.String() {
		t.Errorf("got status %v by %v", resp["status"], resp["acknowledged_by"])
	}
	if resp["acknowledged_at"] == nil {
		t.Error("acknowledged_at should be set")
	}

	topics := pub.topics(ws.EventServiceRequestAcknowledged)
	if len(topics) != 2 || topics[0] != ws.TopicStaff || topics[1] != ws.TableTopic(sr.TableID) {
		t.Errorf("published to %v", topics)
	}

	rr = doAuthRequest(t, router, http.MethodPost, "/service-requests/"+sr.ID.String()+"/acknowledge", nil, waiterUser())
	assertStatus(t, rr, http.StatusConflict)
	assertError(t, rr, "service request already acknowledged")
}

func TestServiceRequestAcknowledgeMissing(t *testing.T) {
	router := setupServiceRequestRouter(newMockServiceRequestStore(), &recordingPublisher{})

	rr := doAuthRequest(t, router, http.MethodPost, "/service-requests/"+uuid.NewString()+"/acknowledge", nil, waiterUser())
	assertStatus(t, rr, http.StatusNotFound)
	assertError(t, rr, "service request not found")

	rr = doAuthRequest(t, router, http.MethodPost, "/service-requests/abc/acknowledge", nil, waiterUser())
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "invalid service request ID")
}
