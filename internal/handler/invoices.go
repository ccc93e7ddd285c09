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
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/service"
)

// Confirmation phrase required to delete every invoice.
const clearInvoicesConfirmation = "LIMPAR TUDO"

// InvoiceStore defines the database methods needed by invoice handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type InvoiceStore interface {
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
	DeleteAllInvoices(ctx context.Context) (int64, error)
}

// InvoiceReader loads an invoice with its lines.
// Satisfied by *service.InvoiceService.
type InvoiceReader interface {
	Get(ctx context.Context, id uuid.UUID) (*service.InvoiceResult, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	store    InvoiceStore
	reader   InvoiceReader
	docs     *document.Renderer
	pdf      document.PDFRenderer
	settings SettingsReader
	loc      *time.Location
	now      func() time.Time
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(
	store InvoiceStore,
	reader InvoiceReader,
	docs *document.Renderer,
	pdf document.PDFRenderer,
	settings SettingsReader,
	loc *time.Location,
) *InvoiceHandler {
	return &InvoiceHandler{
		store:    store,
		reader:   reader,
		docs:     docs,
		pdf:      pdf,
		settings: settings,
		loc:      orUTC(loc),
		now:      time.Now,
	}
}

// RegisterRoutes registers the staff endpoints at /invoices.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/print", h.Print)
	r.Get("/{id}/pdf", h.PDF)
}

// RegisterAdminRoutes registers the admin endpoints at /invoices.
func (h *InvoiceHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/", h.DeleteAll)
}

// --- Response types ---

type invoiceItemResponse struct {
	ProductName string `json:"product_name"`
	Volume      string `json:"volume"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int32  `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type invoiceResponse struct {
	ID                   uuid.UUID             `json:"id"`
	InvoiceNumber        string                `json:"invoice_number"`
	TableID              uuid.UUID             `json:"table_id"`
	TableNumber          string                `json:"table_number"`
	Subtotal             string                `json:"subtotal"`
	ServiceFee           string                `json:"service_fee"`
	TaxAmount            string                `json:"tax_amount"`
	TotalAmount          string                `json:"total_amount"`
	ServiceFeeEnabled    bool                  `json:"service_fee_enabled"`
	ServiceFeePercentage string                `json:"service_fee_percentage"`
	TaxPercentage        string                `json:"tax_percentage"`
	PaymentMethod        string                `json:"payment_method"`
	PaymentStatus        string                `json:"payment_status"`
	CustomerName         string                `json:"customer_name"`
	CustomerDocument     *string               `json:"customer_document"`
	Notes                *string               `json:"notes"`
	WaiterID             *uuid.UUID            `json:"waiter_id"`
	Items                []invoiceItemResponse `json:"items,omitempty"`
	OrderIDs             []uuid.UUID           `json:"order_ids,omitempty"`
	ClosedAt             time.Time             `json:"closed_at"`
}

func toInvoiceResponse(inv database.Invoice, items []database.InvoiceItem, orderIDs []uuid.UUID) invoiceResponse {
	resp := invoiceResponse{
		ID:                   inv.ID,
		InvoiceNumber:        inv.InvoiceNumber,
		TableID:              inv.TableID,
		TableNumber:          inv.TableNumber,
		Subtotal:             numericToString(inv.Subtotal),
		ServiceFee:           numericToString(inv.ServiceFee),
		TaxAmount:            numericToString(inv.TaxAmount),
		TotalAmount:          numericToString(inv.TotalAmount),
		ServiceFeeEnabled:    inv.ServiceFeeEnabled,
		ServiceFeePercentage: numericToDecimal(inv.ServiceFeePercentage).String(),
		TaxPercentage:        numericToDecimal(inv.TaxPercentage).String(),
		PaymentMethod:        string(inv.PaymentMethod),
		PaymentStatus:        string(inv.PaymentStatus),
		CustomerName:         inv.CustomerName,
		CustomerDocument:     textPtr(inv.CustomerDocument),
		Notes:                textPtr(inv.Notes),
		WaiterID:             uuidPtr(inv.WaiterID),
		OrderIDs:             orderIDs,
		ClosedAt:             inv.ClosedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, invoiceItemResponse{
			ProductName: it.ProductName,
			Volume:      it.Volume,
			UnitPrice:   numericToString(it.UnitPrice),
			Quantity:    it.Quantity,
			LineTotal:   numericToString(it.LineTotal),
		})
	}
	return resp
}

// --- Handlers ---

// List returns invoices newest first. Filters: preset or start_date/end_date,
// payment_method, search; paginated.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseInvoiceFilter(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := parsePagination(r)

	invoices, err := h.store.ListInvoices(r.Context(), database.ListInvoicesParams{
		StartDate:     f.dates.startParam(),
		EndDate:       f.dates.endParam(),
		PaymentMethod: f.paymentMethod,
		Search:        f.search,
		Limit:         int32(limit),
		Offset:        int32(offset),
	})
	if err != nil {
		internalError(w, r, err, "list invoices")
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv, nil, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(res.Invoice, res.Items, nil))
}

// Print renders the invoice as printable HTML.
func (h *InvoiceHandler) Print(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, formatHTML)
}

func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, formatPDF)
}

// DeleteAll removes every invoice. Settled orders stay settled.
func (h *InvoiceHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Confirm != clearInvoicesConfirmation {
		writeError(w, http.StatusBadRequest, `confirm must be "`+clearInvoicesConfirmation+`"`)
		return
	}

	n, err := h.store.DeleteAllInvoices(r.Context())
	if err != nil {
		internalError(w, r, err, "delete invoices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// --- Helpers ---

func (h *InvoiceHandler) load(w http.ResponseWriter, r *http.Request) (*service.InvoiceResult, bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice ID")
		return nil, false
	}
	res, err := h.reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return nil, false
		}
		internalError(w, r, err, "get invoice")
		return nil, false
	}
	return res, true
}

func (h *InvoiceHandler) render(w http.ResponseWriter, r *http.Request, format string) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}

	view := invoiceView(res, businessFrom(loadSettings(r.Context(), h.settings)))
	html, err := document.Bytes(func(out io.Writer) error { return h.docs.Invoice(out, view) })
	if err != nil {
		internalError(w, r, err, "render invoice")
		return
	}
	writeDocument(w, r, h.pdf, format, res.Invoice.InvoiceNumber, html)
}

func invoiceView(res *service.InvoiceResult, business document.Business) document.InvoiceView {
	inv := res.Invoice
	view := document.InvoiceView{
		Business:             business,
		Number:               inv.InvoiceNumber,
		TableNumber:          inv.TableNumber,
		ClosedAt:             inv.ClosedAt,
		Lines:                make([]document.Line, len(res.Items)),
		Subtotal:             numericToDecimal(inv.Subtotal),
		ServiceFeeEnabled:    inv.ServiceFeeEnabled,
		ServiceFeePercentage: numericToDecimal(inv.ServiceFeePercentage),
		ServiceFee:           numericToDecimal(inv.ServiceFee),
		TaxPercentage:        numericToDecimal(inv.TaxPercentage),
		TaxAmount:            numericToDecimal(inv.TaxAmount),
		Total:                numericToDecimal(inv.TotalAmount),
		PaymentMethod:        string(inv.PaymentMethod),
		PaymentStatus:        string(inv.PaymentStatus),
		CustomerName:         inv.CustomerName,
		CustomerDocument:     inv.CustomerDocument.String,
		Notes:                inv.Notes.String,
	}
	for i, it := range res.Items {
		view.Lines[i] = document.Line{
			ProductName: it.ProductName,
			Volume:      it.Volume,
			Quantity:    it.Quantity,
			UnitPrice:   numericToDecimal(it.UnitPrice),
			LineTotal:   numericToDecimal(it.LineTotal),
		}
	}
	return view
}

// invoiceFilter is the parsed form of the invoice list and report filters.
type invoiceFilter struct {
	dates         dateRange
	paymentMethod pgtype.Text
	search        pgtype.Text
}

func parseInvoiceFilter(r *http.Request, loc *time.Location, now time.Time) (invoiceFilter, error) {
	dates, err := parseDateRange(r, loc, now)
	if err != nil {
		return invoiceFilter{}, err
	}
	f := invoiceFilter{dates: dates}

	if s := r.URL.Query().Get("payment_method"); s != "" {
		if !database.PaymentMethod(s).Valid() {
			return invoiceFilter{}, errors.New("invalid payment_method")
		}
		f.paymentMethod = pgtype.Text{String: s, Valid: true}
	}
	f.search = optionalText(strings.TrimSpace(r.URL.Query().Get("search")))
	return f, nil
}
