package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
)

// Upper bound on the invoices listed in one fiscal report.
const maxFiscalRows = 5000

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetInvoiceStats(ctx context.Context, arg database.GetInvoiceStatsParams) (database.GetInvoiceStatsRow, error)
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
	CountOrdersByStatusSince(ctx context.Context, since time.Time) ([]database.CountOrdersByStatusSinceRow, error)
	CountTablesByStatus(ctx context.Context, status database.TableStatus) (int64, error)
	CountServiceRequestsByStatus(ctx context.Context, status database.ServiceRequestStatus) (int64, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store    ReportsStore
	docs     *document.Renderer
	pdf      document.PDFRenderer
	settings SettingsReader
	loc      *time.Location
	now      func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Day boundaries follow loc.
func NewReportsHandler(
	store ReportsStore,
	docs *document.Renderer,
	pdf document.PDFRenderer,
	settings SettingsReader,
	loc *time.Location,
) *ReportsHandler {
	return &ReportsHandler{
		store:    store,
		docs:     docs,
		pdf:      pdf,
		settings: settings,
		loc:      orUTC(loc),
		now:      time.Now,
	}
}

// RegisterRoutes registers the report endpoints at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/invoices", h.InvoiceStats)
	r.Get("/fiscal", h.Fiscal)
	r.Get("/dashboard", h.Dashboard)
}

// --- Response types ---

type invoiceStatsResponse struct {
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	TotalInvoices   int64   `json:"total_invoices"`
	TotalRevenue    string  `json:"total_revenue"`
	TotalTax        string  `json:"total_tax"`
	TotalServiceFee string  `json:"total_service_fee"`
	PaidInvoices    int64   `json:"paid_invoices"`
	PendingRevenue  string  `json:"pending_revenue"`
}

type dashboardResponse struct {
	Date                   string           `json:"date"`
	OrdersByStatus         map[string]int64 `json:"orders_by_status"`
	OrdersToday            int64            `json:"orders_today"`
	InvoicesToday          int64            `json:"invoices_today"`
	RevenueToday           string           `json:"revenue_today"`
	OccupiedTables         int64            `json:"occupied_tables"`
	PendingServiceRequests int64            `json:"pending_service_requests"`
}

// --- Handlers ---

// InvoiceStats returns the totals of the filtered invoices.
func (h *ReportsHandler) InvoiceStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseInvoiceFilter(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.store.GetInvoiceStats(r.Context(), statsParams(f))
	if err != nil {
		internalError(w, r, err, "get invoice stats")
		return
	}

	resp := invoiceStatsResponse{
		TotalInvoices:   stats.TotalInvoices,
		TotalRevenue:    numericToString(stats.TotalRevenue),
		TotalTax:        numericToString(stats.TotalTax),
		TotalServiceFee: numericToString(stats.TotalServiceFee),
		PaidInvoices:    stats.PaidInvoices,
		PendingRevenue:  numericToString(stats.PendingRevenue),
	}
	if !f.dates.Start.IsZero() {
		s := f.dates.Start.Format(dateLayout)
		resp.StartDate = &s
	}
	if !f.dates.End.IsZero() {
		s := f.dates.LastDay().Format(dateLayout)
		resp.EndDate = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// Fiscal prints the filtered invoice list with its totals.
func (h *ReportsHandler) Fiscal(w http.ResponseWriter, r *http.Request) {
	format, ok := documentFormat(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be html or pdf")
		return
	}
	f, err := parseInvoiceFilter(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.dates.Start.IsZero() || f.dates.End.IsZero() {
		writeError(w, http.StatusBadRequest, "preset or start_date and end_date are required")
		return
	}

	stats, err := h.store.GetInvoiceStats(r.Context(), statsParams(f))
	if err != nil {
		internalError(w, r, err, "get invoice stats")
		return
	}
	invoices, err := h.store.ListInvoices(r.Context(), database.ListInvoicesParams{
		StartDate:     f.dates.startParam(),
		EndDate:       f.dates.endParam(),
		PaymentMethod: f.paymentMethod,
		Search:        f.search,
		Limit:         maxFiscalRows,
	})
	if err != nil {
		internalError(w, r, err, "list invoices for report")
		return
	}

	view := document.FiscalReportView{
		Business: businessFrom(loadSettings(r.Context(), h.settings)),
		Start:    f.dates.Start,
		End:      f.dates.LastDay(),
		Filters:  describeFilter(f),
		Stats: document.ReportStats{
			TotalInvoices:   stats.TotalInvoices,
			TotalRevenue:    numericToDecimal(stats.TotalRevenue),
			TotalTax:        numericToDecimal(stats.TotalTax),
			TotalServiceFee: numericToDecimal(stats.TotalServiceFee),
			PaidInvoices:    stats.PaidInvoices,
			PendingRevenue:  numericToDecimal(stats.PendingRevenue),
		},
		Invoices:    make([]document.FiscalRow, len(invoices)),
		GeneratedAt: h.now(),
	}
	for i, inv := range invoices {
		view.Invoices[i] = document.FiscalRow{
			Number:        inv.InvoiceNumber,
			ClosedAt:      inv.ClosedAt,
			TableNumber:   inv.TableNumber,
			CustomerName:  inv.CustomerName,
			PaymentMethod: string(inv.PaymentMethod),
			PaymentStatus: string(inv.PaymentStatus),
			Subtotal:      numericToDecimal(inv.Subtotal),
			ServiceFee:    numericToDecimal(inv.ServiceFee),
			TaxAmount:     numericToDecimal(inv.TaxAmount),
			Total:         numericToDecimal(inv.TotalAmount),
		}
	}

	html, err := document.Bytes(func(out io.Writer) error { return h.docs.FiscalReport(out, view) })
	if err != nil {
		internalError(w, r, err, "render fiscal report")
		return
	}
	writeDocument(w, r, h.pdf, format, "relatorio-fiscal-"+f.dates.Start.Format(dateLayout), html)
}

// Dashboard summarizes today's activity.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := midnight(h.now(), h.loc)
	day := dateRange{Start: today, End: today.AddDate(0, 0, 1)}

	counts, err := h.store.CountOrdersByStatusSince(ctx, today)
	if err != nil {
		internalError(w, r, err, "count orders by status")
		return
	}
	stats, err := h.store.GetInvoiceStats(ctx, database.GetInvoiceStatsParams{
		StartDate: day.startParam(),
		EndDate:   day.endParam(),
	})
	if err != nil {
		internalError(w, r, err, "get today's invoice stats")
		return
	}
	occupied, err := h.store.CountTablesByStatus(ctx, database.TableStatusOccupied)
	if err != nil {
		internalError(w, r, err, "count occupied tables")
		return
	}
	pending, err := h.store.CountServiceRequestsByStatus(ctx, database.ServiceRequestStatusPending)
	if err != nil {
		internalError(w, r, err, "count pending service requests")
		return
	}

	resp := dashboardResponse{
		Date:                   today.Format(dateLayout),
		OrdersByStatus:         make(map[string]int64, len(counts)),
		InvoicesToday:          stats.TotalInvoices,
		RevenueToday:           numericToString(stats.TotalRevenue),
		OccupiedTables:         occupied,
		PendingServiceRequests: pending,
	}
	for _, c := range counts {
		resp.OrdersByStatus[string(c.Status)] = c.Count
		resp.OrdersToday += c.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func statsParams(f invoiceFilter) database.GetInvoiceStatsParams {
	return database.GetInvoiceStatsParams{
		StartDate:     f.dates.startParam(),
		EndDate:       f.dates.endParam(),
		PaymentMethod: f.paymentMethod,
		Search:        f.search,
	}
}

// describeFilter is the filter line printed under the report title.
func describeFilter(f invoiceFilter) string {
	var parts []string
	if f.paymentMethod.Valid {
		parts = append(parts, "Pagamento: "+document.PaymentLabel(f.paymentMethod.String))
	}
	if f.search.Valid {
		parts = append(parts, "Busca: "+f.search.String)
	}
	return strings.Join(parts, " · ")
}
