package handler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/service"
	"github.com/bierserv/api/internal/ws"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
}

// TableInvoicer previews and closes a table's bill.
// Satisfied by *service.InvoiceService.
type TableInvoicer interface {
	Preview(ctx context.Context, tableID uuid.UUID, serviceFee *bool) (*service.Preview, error)
	CloseTable(ctx context.Context, req service.CloseTableRequest) (*service.InvoiceResult, error)
}

// TableHandler handles table endpoints, including closing the bill.
type TableHandler struct {
	store    TableStore
	invoices TableInvoicer
	settings SettingsReader
	events   service.EventPublisher
}

// NewTableHandler creates a new TableHandler. events may be nil.
func NewTableHandler(store TableStore, invoices TableInvoicer, settings SettingsReader, events service.EventPublisher) *TableHandler {
	return &TableHandler{store: store, invoices: invoices, settings: settings, events: events}
}

// RegisterRoutes registers the staff endpoints at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/consumption", h.Consumption)
	r.Get("/{id}/invoice-preview", h.InvoicePreview)
	r.Get("/{id}/qr.png", h.QRCode)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/close", h.Close)
}

// RegisterManageRoutes registers the manager endpoints at /tables.
func (h *TableHandler) RegisterManageRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	Number          string  `json:"number" validate:"required,max=20"`
	Capacity        int32   `json:"capacity" validate:"min=0,max=100"`
	Location        *string `json:"location" validate:"omitempty,max=80"`
	QRCode          *string `json:"qr_code" validate:"omitempty,max=64"`
	ExpectedVersion *int32  `json:"expected_version"`
}

type tableStatusRequest struct {
	Status          string `json:"status" validate:"required,oneof=free occupied reserved"`
	ExpectedVersion *int32 `json:"expected_version"`
}

type closeTableRequest struct {
	PaymentMethod    string `json:"payment_method" validate:"omitempty,oneof=pending cash credit_card debit_card pix"`
	CustomerName     string `json:"customer_name" validate:"max=120"`
	CustomerDocument string `json:"customer_document" validate:"max=32"`
	Notes            string `json:"notes" validate:"max=1000"`
	ServiceFee       *bool  `json:"service_fee"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Capacity  int32     `json:"capacity"`
	Location  *string   `json:"location"`
	Status    string    `json:"status"`
	QRCode    string    `json:"qr_code"`
	Version   int32     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Number:    t.Number,
		Capacity:  t.Capacity,
		Location:  textPtr(t.Location),
		Status:    string(t.Status),
		QRCode:    t.QrCode,
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type consumptionResponse struct {
	TableID     uuid.UUID       `json:"table_id"`
	TableNumber string          `json:"table_number"`
	Orders      []orderResponse `json:"orders"`
	TotalAmount string          `json:"total_amount"`
	TotalItems  int32           `json:"total_items"`
	OrderCount  int             `json:"order_count"`
}

type previewLineResponse struct {
	ProductName string `json:"product_name"`
	Volume      string `json:"volume"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int32  `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type previewResponse struct {
	Table                tableResponse         `json:"table"`
	Lines                []previewLineResponse `json:"lines"`
	Subtotal             string                `json:"subtotal"`
	ServiceFee           string                `json:"service_fee"`
	TaxAmount            string                `json:"tax_amount"`
	TotalAmount          string                `json:"total_amount"`
	ServiceFeeEnabled    bool                  `json:"service_fee_enabled"`
	ServiceFeePercentage string                `json:"service_fee_percentage"`
	TaxPercentage        string                `json:"tax_percentage"`
	OrderCount           int                   `json:"order_count"`
	ItemCount            int32                 `json:"item_count"`
}

func toPreviewResponse(p *service.Preview) previewResponse {
	lines := make([]previewLineResponse, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = previewLineResponse{
			ProductName: l.ProductName,
			Volume:      l.Volume,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal.StringFixed(2),
		}
	}
	return previewResponse{
		Table:                toTableResponse(p.Table),
		Lines:                lines,
		Subtotal:             p.Fees.Subtotal.StringFixed(2),
		ServiceFee:           p.Fees.ServiceFee.StringFixed(2),
		TaxAmount:            p.Fees.TaxAmount.StringFixed(2),
		TotalAmount:          p.Fees.Total.StringFixed(2),
		ServiceFeeEnabled:    p.Rates.ServiceFeeEnabled,
		ServiceFeePercentage: p.Rates.ServiceFeePercentage.String(),
		TaxPercentage:        p.Rates.TaxPercentage.String(),
		OrderCount:           p.OrderCount,
		ItemCount:            p.ItemCount,
	}
}

// --- Handlers ---

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		internalError(w, r, err, "list tables")
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Create adds a table. A QR code is generated when none is given.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	number := strings.TrimSpace(req.Number)
	if number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}
	qrCode := strings.TrimSpace(deref(req.QRCode))
	if qrCode == "" {
		qrCode = newQRCode()
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Number:   number,
		Capacity: req.Capacity,
		Location: optionalText(deref(req.Location)),
		Status:   database.TableStatusFree,
		QrCode:   qrCode,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "table number or QR code already exists")
			return
		}
		internalError(w, r, err, "create table")
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	number := strings.TrimSpace(req.Number)
	if number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}
	qrCode := strings.TrimSpace(deref(req.QRCode))
	if qrCode == "" {
		qrCode = existing.QrCode
	}

	table, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:              existing.ID,
		Number:          number,
		Capacity:        req.Capacity,
		Location:        optionalText(deref(req.Location)),
		QrCode:          qrCode,
		ExpectedVersion: optionalInt4(req.ExpectedVersion),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "stale version")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "table number or QR code already exists")
			return
		}
		internalError(w, r, err, "update table")
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}
	if _, err := h.store.DeleteTable(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusConflict, "table has orders or invoices")
			return
		}
		internalError(w, r, err, "delete table")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus forces a table status. With expected_version it is a
// compare-and-set.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	var req tableStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := h.store.UpdateTableStatus(r.Context(), database.UpdateTableStatusParams{
		ID:              current.ID,
		Status:          database.TableStatus(req.Status),
		ExpectedVersion: optionalInt4(req.ExpectedVersion),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "stale version")
			return
		}
		internalError(w, r, err, "update table status")
		return
	}

	if table.Status != current.Status {
		publish(h.events, ws.EventTableStatusChanged, service.TableEvent{
			TableID:  table.ID,
			Number:   table.Number,
			Status:   table.Status,
			Previous: current.Status,
			Version:  table.Version,
		}, ws.TopicStaff, ws.TableTopic(table.ID))
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Consumption lists the table's active orders with their totals.
func (h *TableHandler) Consumption(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	orders, err := h.store.ListActiveOrdersByTable(r.Context(), table.ID)
	if err != nil {
		internalError(w, r, err, "list active orders")
		return
	}
	items, byOrder, err := loadOrderItems(r.Context(), h.store, orders)
	if err != nil {
		internalError(w, r, err, "list order items")
		return
	}

	sum := service.Summarize(orders, items)
	resp := consumptionResponse{
		TableID:     table.ID,
		TableNumber: table.Number,
		Orders:      make([]orderResponse, len(orders)),
		TotalAmount: sum.TotalAmount.StringFixed(2),
		TotalItems:  sum.TotalItems,
		OrderCount:  sum.OrderCount,
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o, byOrder[o.ID])
	}
	writeJSON(w, http.StatusOK, resp)
}

// InvoicePreview shows what closing the table now would bill.
func (h *TableHandler) InvoicePreview(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	var serviceFee *bool
	if s := r.URL.Query().Get("service_fee"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "service_fee must be true or false")
			return
		}
		serviceFee = &v
	}

	preview, err := h.invoices.Preview(r.Context(), id, serviceFee)
	if err != nil {
		writeServiceError(w, r, err, "invoice preview")
		return
	}
	writeJSON(w, http.StatusOK, toPreviewResponse(preview))
}

// QRCode draws the table's menu link as a PNG.
func (h *TableHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	size := document.DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "size must be an integer")
			return
		}
		size = document.ClampQRSize(v)
	}

	content := table.QrCode
	if menuURL := strings.TrimSpace(loadSettings(r.Context(), h.settings).MenuURL); menuURL != "" {
		content = document.TableMenuURL(menuURL, table.QrCode)
	}
	png, err := document.QRPNG(content, size)
	if err != nil {
		internalError(w, r, err, "render table qr")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}

// Close bills every open order of the table and frees it. A repeated
// Idempotency-Key returns the invoice of the first request with 200.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req closeTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.invoices.CloseTable(r.Context(), service.CloseTableRequest{
		TableID:          id,
		PaymentMethod:    database.PaymentMethod(req.PaymentMethod),
		CustomerName:     req.CustomerName,
		CustomerDocument: req.CustomerDocument,
		Notes:            req.Notes,
		ServiceFee:       req.ServiceFee,
		WaiterID:         claims.UserID,
		IdempotencyKey:   strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeServiceError(w, r, err, "close table")
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toInvoiceResponse(res.Invoice, res.Items, res.OrderIDs))
}

// --- Helpers ---

func (h *TableHandler) loadTable(w http.ResponseWriter, r *http.Request) (database.Table, bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return database.Table{}, false
	}
	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return database.Table{}, false
		}
		internalError(w, r, err, "get table")
		return database.Table{}, false
	}
	return table, true
}

// publish delivers an event best-effort; failures are only logged.
func publish(events service.EventPublisher, eventType string, payload any, topics ...string) {
	if events == nil {
		return
	}
	for _, topic := range topics {
		if err := events.Publish(topic, eventType, payload); err != nil {
			log.Warn().Err(err).Str("topic", topic).Str("event", eventType).Msg("publish failed")
		}
	}
}

// newQRCode returns a table code like "QR042917".
func newQRCode() string {
	return fmt.Sprintf("QR%06d", rand.IntN(1_000_000))
}

// writeServiceError maps the order and invoice service errors to statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case service.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case service.IsConflictError(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		internalError(w, r, err, msg)
	}
}

// orderItemLister is the query loadOrderItems needs.
type orderItemLister interface {
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
}

// loadOrderItems fetches the items of orders in one query, also grouped by
// order.
func loadOrderItems(ctx context.Context, store orderItemLister, orders []database.Order) ([]database.OrderItem, map[uuid.UUID][]database.OrderItem, error) {
	byOrder := make(map[uuid.UUID][]database.OrderItem, len(orders))
	if len(orders) == 0 {
		return nil, byOrder, nil
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return items, byOrder, nil
}

func sumOrders(orders []database.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(numericToDecimal(o.TotalAmount))
	}
	return total
}
