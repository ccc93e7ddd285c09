package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/service"
)

// Confirmation phrase required to purge orders.
const purgeOrdersConfirmation = "EXCLUIR"

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersInRange(ctx context.Context, arg database.ListOrdersInRangeParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ArchiveOrders(ctx context.Context, ids []uuid.UUID) (int64, error)
	RestoreOrders(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteOrdersInRange(ctx context.Context, arg database.DeleteOrdersInRangeParams) (int64, error)
	ListTables(ctx context.Context) ([]database.Table, error)
}

// OrderWorkflow places orders and moves them through their statuses.
// Satisfied by *service.OrderService.
type OrderWorkflow interface {
	SubmitOrder(ctx context.Context, req service.SubmitOrderRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*service.OrderResult, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store    OrderStore
	workflow OrderWorkflow
	docs     *document.Renderer
	pdf      document.PDFRenderer
	settings SettingsReader
	loc      *time.Location
	now      func() time.Time
}

// NewOrderHandler creates a new OrderHandler. Dates in filters and exports
// are read in loc.
func NewOrderHandler(
	store OrderStore,
	workflow OrderWorkflow,
	docs *document.Renderer,
	pdf document.PDFRenderer,
	settings SettingsReader,
	loc *time.Location,
) *OrderHandler {
	return &OrderHandler{
		store:    store,
		workflow: workflow,
		docs:     docs,
		pdf:      pdf,
		settings: settings,
		loc:      orUTC(loc),
		now:      time.Now,
	}
}

// RegisterRoutes registers the staff endpoints at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/archive", h.Archive)
	r.Post("/restore", h.Restore)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// RegisterManageRoutes registers the manager endpoints at /orders.
func (h *OrderHandler) RegisterManageRoutes(r chi.Router) {
	r.Get("/export", h.Export)
}

// RegisterAdminRoutes registers the admin endpoints at /orders.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/", h.Purge)
}

// --- Request / Response types ---

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Volume    string `json:"volume" validate:"max=40"`
	Quantity  int32  `json:"quantity" validate:"required,min=1,max=99"`
}

type createOrderRequest struct {
	TableID       string             `json:"table_id" validate:"required,uuid"`
	CustomerNotes string             `json:"customer_notes" validate:"max=500"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type orderStatusRequest struct {
	Status          string `json:"status" validate:"required,oneof=pending preparing ready delivered cancelled"`
	ExpectedVersion *int32 `json:"expected_version"`
}

type orderIDsRequest struct {
	IDs []string `json:"ids" validate:"max=500,dive,uuid"`
}

type confirmRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}

type orderItemResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   *uuid.UUID `json:"product_id"`
	ProductName string     `json:"product_name"`
	Volume      string     `json:"volume"`
	UnitPrice   string     `json:"unit_price"`
	Quantity    int32      `json:"quantity"`
	LineTotal   string     `json:"line_total"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	TableID       uuid.UUID           `json:"table_id"`
	Status        string              `json:"status"`
	Source        string              `json:"source"`
	TotalAmount   string              `json:"total_amount"`
	CustomerNotes *string             `json:"customer_notes"`
	WaiterID      *uuid.UUID          `json:"waiter_id"`
	InvoiceID     *uuid.UUID          `json:"invoice_id"`
	SettledAt     *time.Time          `json:"settled_at"`
	ArchivedAt    *time.Time          `json:"archived_at"`
	Version       int32               `json:"version"`
	NextStatuses  []string            `json:"next_statuses"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		TableID:       o.TableID,
		Status:        string(o.Status),
		Source:        string(o.Source),
		TotalAmount:   numericToString(o.TotalAmount),
		CustomerNotes: textPtr(o.CustomerNotes),
		WaiterID:      uuidPtr(o.WaiterID),
		InvoiceID:     uuidPtr(o.InvoiceID),
		SettledAt:     timePtr(o.SettledAt),
		ArchivedAt:    timePtr(o.ArchivedAt),
		Version:       o.Version,
		NextStatuses:  []string{},
		Items:         make([]orderItemResponse, len(items)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if !o.InvoiceID.Valid {
		for _, s := range service.NextStatuses(o.Status) {
			resp.NextStatuses = append(resp.NextStatuses, string(s))
		}
	}
	for i, it := range items {
		resp.Items[i] = orderItemResponse{
			ID:          it.ID,
			ProductID:   uuidPtr(it.ProductID),
			ProductName: it.ProductName,
			Volume:      it.Volume,
			UnitPrice:   numericToString(it.UnitPrice),
			Quantity:    it.Quantity,
			LineTotal:   numericToString(it.LineTotal),
		}
	}
	return resp
}

// --- Handlers ---

// List returns orders newest first. Filters: status, table_id, start_date,
// end_date, include_archived, limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePagination(r)
	params := database.ListOrdersParams{
		IncludeArchived: q.Get("include_archived") == "true",
		Limit:           int32(limit),
		Offset:          int32(offset),
	}

	if s := q.Get("status"); s != "" {
		if !database.OrderStatus(s).Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("table_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid table_id")
			return
		}
		params.TableID = pgtype.UUID{Bytes: id, Valid: true}
	}
	dates, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params.StartDate = dates.startParam()
	params.EndDate = dates.endParam()

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		internalError(w, r, err, "list orders")
		return
	}
	_, byOrder, err := loadOrderItems(r.Context(), h.store, orders)
	if err != nil {
		internalError(w, r, err, "list order items")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, byOrder[o.ID])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create places a staff order. The acting user is recorded as the waiter.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	submit, err := toSubmitRequest(req.TableID, req.CustomerNotes, req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	submit.Source = database.OrderSourceStaff
	submit.WaiterID = claims.UserID

	res, err := h.workflow.SubmitOrder(r.Context(), submit)
	if err != nil {
		writeServiceError(w, r, err, "submit order")
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(res.Order, res.Items))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		internalError(w, r, err, "get order")
		return
	}
	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		internalError(w, r, err, "list order items")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req orderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.workflow.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		OrderID:         id,
		Status:          database.OrderStatus(req.Status),
		ActorID:         claims.UserID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeServiceError(w, r, err, "update order status")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(res.Order, res.Items))
}

// Cancel cancels a pending order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	res, err := h.workflow.Cancel(r.Context(), id, claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "cancel order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(res.Order, res.Items))
}

// Archive hides the listed delivered or cancelled orders, or all of them
// when no ids are given.
func (h *OrderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeOrderIDs(w, r)
	if !ok {
		return
	}
	n, err := h.store.ArchiveOrders(r.Context(), ids)
	if err != nil {
		internalError(w, r, err, "archive orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"archived": n})
}

func (h *OrderHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeOrderIDs(w, r)
	if !ok {
		return
	}
	n, err := h.store.RestoreOrders(r.Context(), ids)
	if err != nil {
		internalError(w, r, err, "restore orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"restored": n})
}

// Export prints the orders of a date range as HTML or PDF.
func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, ok := documentFormat(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be html or pdf")
		return
	}
	dates, err := requireDateRange(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.store.ListOrdersInRange(r.Context(), database.ListOrdersInRangeParams{
		StartDate: dates.Start,
		EndDate:   dates.End,
	})
	if err != nil {
		internalError(w, r, err, "list orders for export")
		return
	}
	_, byOrder, err := loadOrderItems(r.Context(), h.store, orders)
	if err != nil {
		internalError(w, r, err, "list order items")
		return
	}
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		internalError(w, r, err, "list tables")
		return
	}
	tableNumbers := make(map[uuid.UUID]string, len(tables))
	for _, t := range tables {
		tableNumbers[t.ID] = t.Number
	}

	view := document.OrdersExportView{
		Business:    businessFrom(loadSettings(r.Context(), h.settings)),
		Start:       dates.Start,
		End:         dates.LastDay(),
		Orders:      make([]document.OrderRow, len(orders)),
		Total:       sumOrders(orders),
		GeneratedAt: h.now(),
	}
	for i, o := range orders {
		view.Orders[i] = document.OrderRow{
			ID:          o.ID.String(),
			TableNumber: tableNumbers[o.TableID],
			CreatedAt:   o.CreatedAt,
			Status:      string(o.Status),
			Source:      string(o.Source),
			Items:       documentLines(byOrder[o.ID]),
			Total:       numericToDecimal(o.TotalAmount),
		}
	}

	html, err := document.Bytes(func(out io.Writer) error { return h.docs.OrdersExport(out, view) })
	if err != nil {
		internalError(w, r, err, "render orders export")
		return
	}
	writeDocument(w, r, h.pdf, format, "pedidos-"+dates.Start.Format(dateLayout), html)
}

// Purge hard-deletes the orders of a date range. The body must carry the
// confirmation phrase.
func (h *OrderHandler) Purge(w http.ResponseWriter, r *http.Request) {
	dates, err := requireDateRange(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Confirm != purgeOrdersConfirmation {
		writeError(w, http.StatusBadRequest, `confirm must be "`+purgeOrdersConfirmation+`"`)
		return
	}

	n, err := h.store.DeleteOrdersInRange(r.Context(), database.DeleteOrdersInRangeParams{
		StartDate: dates.Start,
		EndDate:   dates.End,
	})
	if err != nil {
		internalError(w, r, err, "purge orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// --- Helpers ---

func toSubmitRequest(tableID, notes string, items []orderItemRequest) (service.SubmitOrderRequest, error) {
	id, err := uuid.Parse(tableID)
	if err != nil {
		return service.SubmitOrderRequest{}, errors.New("invalid table_id")
	}
	out := service.SubmitOrderRequest{
		TableID:       id,
		CustomerNotes: strings.TrimSpace(notes),
		Items:         make([]service.SubmitItemRequest, len(items)),
	}
	for i, it := range items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return service.SubmitOrderRequest{}, errors.New("invalid product_id")
		}
		out.Items[i] = service.SubmitItemRequest{
			ProductID: pid,
			Volume:    strings.TrimSpace(it.Volume),
			Quantity:  it.Quantity,
		}
	}
	return out, nil
}

// decodeOrderIDs accepts an empty body, meaning every eligible order.
func decodeOrderIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, true
	}
	var req orderIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if len(req.IDs) == 0 {
		return nil, true
	}
	ids := make([]uuid.UUID, len(req.IDs))
	for i, s := range req.IDs {
		ids[i] = uuid.MustParse(s)
	}
	return ids, true
}

func documentLines(items []database.OrderItem) []document.Line {
	out := make([]document.Line, len(items))
	for i, it := range items {
		out[i] = document.Line{
			ProductName: it.ProductName,
			Volume:      it.Volume,
			Quantity:    it.Quantity,
			UnitPrice:   numericToDecimal(it.UnitPrice),
			LineTotal:   numericToDecimal(it.LineTotal),
		}
	}
	return out
}
