// Package document renders printable invoices and reports as HTML, prints
// them to PDF through headless Chrome and draws table QR codes.
package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Business is the letterhead printed on every document.
type Business struct {
	Name        string
	Subtitle    string
	ContactInfo string
	LogoURL     string
}

type Line struct {
	ProductName string
	Volume      string
	Quantity    int32
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// InvoiceView is the data of a printed invoice.
type InvoiceView struct {
	Business             Business
	Number               string
	TableNumber          string
	ClosedAt             time.Time
	Lines                []Line
	Subtotal             decimal.Decimal
	ServiceFeeEnabled    bool
	ServiceFeePercentage decimal.Decimal
	ServiceFee           decimal.Decimal
	TaxPercentage        decimal.Decimal
	TaxAmount            decimal.Decimal
	Total                decimal.Decimal
	PaymentMethod        string
	PaymentStatus        string
	CustomerName         string
	CustomerDocument     string
	Notes                string
}

type ReportStats struct {
	TotalInvoices   int64
	TotalRevenue    decimal.Decimal
	TotalTax        decimal.Decimal
	TotalServiceFee decimal.Decimal
	PaidInvoices    int64
	PendingRevenue  decimal.Decimal
}

type FiscalRow struct {
	Number        string
	ClosedAt      time.Time
	TableNumber   string
	CustomerName  string
	PaymentMethod string
	PaymentStatus string
	Subtotal      decimal.Decimal
	ServiceFee    decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
}

// FiscalReportView is the filtered invoice list with its totals.
type FiscalReportView struct {
	Business    Business
	Start       time.Time
	End         time.Time
	Filters     string
	Stats       ReportStats
	Invoices    []FiscalRow
	GeneratedAt time.Time
}

type OrderRow struct {
	ID          string
	TableNumber string
	CreatedAt   time.Time
	Status      string
	Source      string
	Items       []Line
	Total       decimal.Decimal
}

// OrdersExportView lists the orders of a date range.
type OrdersExportView struct {
	Business    Business
	Start       time.Time
	End         time.Time
	Orders      []OrderRow
	Total       decimal.Decimal
	GeneratedAt time.Time
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates. Dates print in loc.
func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"money":   FormatMoney,
		"payment": PaymentLabel,
		"status":  statusLabel,
		"percent": percent,
		"date":    formatDate(loc),
		"day":     formatDay(loc),
	}
	tmpl, err := template.New("documents").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Invoice(w io.Writer, v InvoiceView) error {
	return r.tmpl.ExecuteTemplate(w, "invoice.html", v)
}

func (r *Renderer) FiscalReport(w io.Writer, v FiscalReportView) error {
	return r.tmpl.ExecuteTemplate(w, "fiscal_report.html", v)
}

func (r *Renderer) OrdersExport(w io.Writer, v OrdersExportView) error {
	return r.tmpl.ExecuteTemplate(w, "orders_export.html", v)
}

// Bytes renders with fn into a buffer, for callers that print to PDF.
func Bytes(fn func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
