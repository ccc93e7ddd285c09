package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/service"
	"github.com/bierserv/api/internal/ws"
)

// ServiceRequestStore defines the database methods needed by service request
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type ServiceRequestStore interface {
	ListServiceRequests(ctx context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error)
	GetServiceRequest(ctx context.Context, id uuid.UUID) (database.ServiceRequest, error)
	AcknowledgeServiceRequest(ctx context.Context, arg database.AcknowledgeServiceRequestParams) (database.ServiceRequest, error)
}

// ServiceRequestHandler handles the staff side of "call waiter" requests.
type ServiceRequestHandler struct {
	store  ServiceRequestStore
	events service.EventPublisher
}

// NewServiceRequestHandler creates a new ServiceRequestHandler. events may be nil.
func NewServiceRequestHandler(store ServiceRequestStore, events service.EventPublisher) *ServiceRequestHandler {
	return &ServiceRequestHandler{store: store, events: events}
}

// RegisterRoutes registers the staff endpoints at /service-requests.
func (h *ServiceRequestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/acknowledge", h.Acknowledge)
}

// --- Response types ---

type serviceRequestResponse struct {
	ID             uuid.UUID  `json:"id"`
	TableID        uuid.UUID  `json:"table_id"`
	TableNumber    string     `json:"table_number"`
	RequestType    string     `json:"request_type"`
	Status         string     `json:"status"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toServiceRequestResponse(sr database.ServiceRequest) serviceRequestResponse {
	return serviceRequestResponse{
		ID:             sr.ID,
		TableID:        sr.TableID,
		TableNumber:    sr.TableNumber,
		RequestType:    sr.RequestType,
		Status:         string(sr.Status),
		AcknowledgedBy: uuidPtr(sr.AcknowledgedBy),
		AcknowledgedAt: timePtr(sr.AcknowledgedAt),
		CreatedAt:      sr.CreatedAt,
	}
}

// --- Handlers ---

// List returns the newest requests. Filters: status, limit (default 20).
func (h *ServiceRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListServiceRequestsParams{Limit: defaultLimit}
	if s := r.URL.Query().Get("status"); s != "" {
		if !database.ServiceRequestStatus(s).Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = int32(min(v, maxLimit))
	}

	requests, err := h.store.ListServiceRequests(r.Context(), params)
	if err != nil {
		internalError(w, r, err, "list service requests")
		return
	}
	resp := make([]serviceRequestResponse, len(requests))
	for i, sr := range requests {
		resp[i] = toServiceRequestResponse(sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Acknowledge marks a pending request as handled by the current user. Only
// the first acknowledgement wins.
func (h *ServiceRequestHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid service request ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	sr, err := h.store.AcknowledgeServiceRequest(r.Context(), database.AcknowledgeServiceRequestParams{
		ID:             id,
		AcknowledgedBy: optionalUUID(claims.UserID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeMissingOrAcknowledged(w, r, id)
			return
		}
		internalError(w, r, err, "acknowledge service request")
		return
	}

	resp := toServiceRequestResponse(sr)
	publish(h.events, ws.EventServiceRequestAcknowledged, resp, ws.TopicStaff, ws.TableTopic(sr.TableID))
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *ServiceRequestHandler) writeMissingOrAcknowledged(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if _, err := h.store.GetServiceRequest(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "service request not found")
			return
		}
		internalError(w, r, err, "get service request")
		return
	}
	writeError(w, http.StatusConflict, "service request already acknowledged")
}
