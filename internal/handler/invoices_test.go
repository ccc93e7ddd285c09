package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bierserv/api/internal/auth"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/handler"
	"github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/service"
)

// --- Mocks ---

type mockInvoiceStore struct {
	invoices []database.Invoice
	lastList database.ListInvoicesParams
	deleted  bool
}

func (m *mockInvoiceStore) ListInvoices(_ context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error) {
	m.lastList = arg
	return m.invoices, nil
}

func (m *mockInvoiceStore) DeleteAllInvoices(context.Context) (int64, error) {
	m.deleted = true
	return int64(len(m.invoices)), nil
}

type mockInvoiceReader struct {
	results map[uuid.UUID]*service.InvoiceResult
}

func (m *mockInvoiceReader) Get(_ context.Context, id uuid.UUID) (*service.InvoiceResult, error) {
	res, ok := m.results[id]
	if !ok {
		return nil, service.ErrInvoiceNotFound
	}
	return res, nil
}

// --- Setup ---

func setupInvoiceRouter(t *testing.T, store *mockInvoiceStore, reader *mockInvoiceReader, pdf document.PDFRenderer) *chi.Mux {
	h := handler.NewInvoiceHandler(store, reader, newTestRenderer(t), pdf, defaultSettings(), time.UTC)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/invoices", func(r chi.Router) {
			h.RegisterRoutes(r)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Group(h.RegisterAdminRoutes)
		})
	})
	return r
}

func newInvoiceFixture(t *testing.T) (*mockInvoiceStore, *service.InvoiceResult, *stubPDF, *chi.Mux) {
	res := closedInvoice(uuid.New())
	res.Invoice.CustomerName = "Maria Souza"
	store := &mockInvoiceStore{invoices: []database.Invoice{res.Invoice}}
	reader := &mockInvoiceReader{results: map[uuid.UUID]*service.InvoiceResult{res.Invoice.ID: res}}
	pdf := &stubPDF{}
	return store, res, pdf, setupInvoiceRouter(t, store, reader, pdf)
}

// --- Tests ---

func TestInvoiceList(t *testing.T) {
	store, res, _, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices?start_date=2026-03-01&end_date=2026-03-31&payment_method=pix&search=%20maria%20", nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)

	list := decodeList(t, rr)
	if len(list) != 1 || list[0]["invoice_number"] != res.Invoice.InvoiceNumber {
		t.Fatalf("got %v", list)
	}
	if _, ok := list[0]["items"]; ok {
		t.Error("list entries should not carry items")
	}

	arg := store.lastList
	if !arg.StartDate.Valid || !arg.StartDate.Time.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start: got %+v", arg.StartDate)
	}
	if !arg.EndDate.Valid || !arg.EndDate.Time.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end should be exclusive next day, got %+v", arg.EndDate)
	}
	if arg.PaymentMethod.String != "pix" || arg.Search.String != "maria" {
		t.Errorf("filters: got %+v %+v", arg.PaymentMethod, arg.Search)
	}
	if arg.Limit != 20 {
		t.Errorf("limit: got %d, want default 20", arg.Limit)
	}
}

func TestInvoiceListInvalidPaymentMethod(t *testing.T) {
	_, _, _, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices?payment_method=cheque", nil, waiterUser())
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "invalid payment_method")
}

func TestInvoiceGet(t *testing.T) {
	_, res, _, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices/"+res.Invoice.ID.String(), nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	if resp["service_fee_percentage"] != "10" || resp["tax_percentage"] != "5" {
		t.Errorf("rates: got %v %v", resp["service_fee_percentage"], resp["tax_percentage"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["unit_price"] != "10.00" {
		t.Errorf("items: got %v", items)
	}

	rr = doAuthRequest(t, router, http.MethodGet, "/invoices/"+uuid.NewString(), nil, waiterUser())
	assertStatus(t, rr, http.StatusNotFound)
	assertError(t, rr, "invoice not found")
}

func TestInvoicePrint(t *testing.T) {
	_, res, _, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices/"+res.Invoice.ID.String()+"/print", nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: got %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{"INV-000001", "Maria Souza", "Pilsen", "BierServ"} {
		if !strings.Contains(body, want) {
			t.Errorf("print should contain %q", want)
		}
	}
}

func TestInvoicePDF(t *testing.T) {
	_, res, pdf, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices/"+res.Invoice.ID.String()+"/pdf", nil, waiterUser())
	assertStatus(t, rr, http.StatusOK)

	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type: got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "INV-000001") {
		t.Errorf("content disposition: got %q", cd)
	}
	if !strings.Contains(string(pdf.html), "INV-000001") {
		t.Error("the invoice HTML should be handed to the PDF renderer")
	}
}

func TestInvoicePDFUnavailable(t *testing.T) {
	res := closedInvoice(uuid.New())
	reader := &mockInvoiceReader{results: map[uuid.UUID]*service.InvoiceResult{res.Invoice.ID: res}}
	router := setupInvoiceRouter(t, &mockInvoiceStore{}, reader, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/invoices/"+res.Invoice.ID.String()+"/pdf", nil, waiterUser())
	assertStatus(t, rr, http.StatusServiceUnavailable)
	assertError(t, rr, "pdf generation unavailable")
}

func TestInvoiceDeleteAll(t *testing.T) {
	store, _, _, router := newInvoiceFixture(t)

	rr := doAuthRequest(t, router, http.MethodDelete, "/invoices", map[string]interface{}{"confirm": "LIMPAR TUDO"}, managerUser())
	assertStatus(t, rr, http.StatusForbidden)

	rr = doAuthRequest(t, router, http.MethodDelete, "/invoices", map[string]interface{}{"confirm": "limpar"}, adminUser())
	assertStatus(t, rr, http.StatusBadRequest)
	if store.deleted {
		t.Fatal("nothing should be deleted without the confirmation phrase")
	}

	rr = doAuthRequest(t, router, http.MethodDelete, "/invoices", map[string]interface{}{"confirm": "LIMPAR TUDO"}, adminUser())
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeResponse(t, rr); resp["deleted"] != float64(1) {
		t.Errorf("deleted: got %v", resp["deleted"])
	}
}
