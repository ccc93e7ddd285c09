package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, invoice_number, table_id, table_number, subtotal, service_fee, tax_amount,
    total_amount, service_fee_enabled, service_fee_percentage, tax_percentage, payment_method,
    payment_status, customer_name, customer_document, notes, waiter_id, closed_at, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.TableID,
		&i.TableNumber,
		&i.Subtotal,
		&i.ServiceFee,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.ServiceFeeEnabled,
		&i.ServiceFeePercentage,
		&i.TaxPercentage,
		&i.PaymentMethod,
		&i.PaymentStatus,
		&i.CustomerName,
		&i.CustomerDocument,
		&i.Notes,
		&i.WaiterID,
		&i.ClosedAt,
		&i.CreatedAt,
	)
	return i, err
}

const nextInvoiceNumber = `-- name: NextInvoiceNumber :one
SELECT nextval('invoice_number_seq')`

func (q *Queries) NextInvoiceNumber(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, nextInvoiceNumber)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (
    invoice_number, table_id, table_number, subtotal, service_fee, tax_amount, total_amount,
    service_fee_enabled, service_fee_percentage, tax_percentage, payment_method, payment_status,
    customer_name, customer_document, notes, waiter_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	InvoiceNumber        string         `json:"invoice_number"`
	TableID              uuid.UUID      `json:"table_id"`
	TableNumber          string         `json:"table_number"`
	Subtotal             pgtype.Numeric `json:"subtotal"`
	ServiceFee           pgtype.Numeric `json:"service_fee"`
	TaxAmount            pgtype.Numeric `json:"tax_amount"`
	TotalAmount          pgtype.Numeric `json:"total_amount"`
	ServiceFeeEnabled    bool           `json:"service_fee_enabled"`
	ServiceFeePercentage pgtype.Numeric `json:"service_fee_percentage"`
	TaxPercentage        pgtype.Numeric `json:"tax_percentage"`
	PaymentMethod        PaymentMethod  `json:"payment_method"`
	PaymentStatus        PaymentStatus  `json:"payment_status"`
	CustomerName         string         `json:"customer_name"`
	CustomerDocument     pgtype.Text    `json:"customer_document"`
	Notes                pgtype.Text    `json:"notes"`
	WaiterID             pgtype.UUID    `json:"waiter_id"`
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, createInvoice,
		arg.InvoiceNumber,
		arg.TableID,
		arg.TableNumber,
		arg.Subtotal,
		arg.ServiceFee,
		arg.TaxAmount,
		arg.TotalAmount,
		arg.ServiceFeeEnabled,
		arg.ServiceFeePercentage,
		arg.TaxPercentage,
		arg.PaymentMethod,
		arg.PaymentStatus,
		arg.CustomerName,
		arg.CustomerDocument,
		arg.Notes,
		arg.WaiterID,
	)
	return scanInvoice(row)
}

const invoiceItemColumns = `id, invoice_id, product_name, volume, unit_price, quantity, line_total, position`

func scanInvoiceItem(row interface{ Scan(...any) error }) (InvoiceItem, error) {
	var i InvoiceItem
	err := row.Scan(
		&i.ID,
		&i.InvoiceID,
		&i.ProductName,
		&i.Volume,
		&i.UnitPrice,
		&i.Quantity,
		&i.LineTotal,
		&i.Position,
	)
	return i, err
}

const createInvoiceItem = `-- name: CreateInvoiceItem :one
INSERT INTO invoice_items (invoice_id, product_name, volume, unit_price, quantity, line_total, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + invoiceItemColumns

type CreateInvoiceItemParams struct {
	InvoiceID   uuid.UUID      `json:"invoice_id"`
	ProductName string         `json:"product_name"`
	Volume      string         `json:"volume"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	LineTotal   pgtype.Numeric `json:"line_total"`
	Position    int32          `json:"position"`
}

func (q *Queries) CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) (InvoiceItem, error) {
	row := q.db.QueryRow(ctx, createInvoiceItem,
		arg.InvoiceID,
		arg.ProductName,
		arg.Volume,
		arg.UnitPrice,
		arg.Quantity,
		arg.LineTotal,
		arg.Position,
	)
	return scanInvoiceItem(row)
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := q.db.QueryRow(ctx, getInvoice, id)
	return scanInvoice(row)
}

const listInvoiceItemsByInvoice = `-- name: ListInvoiceItemsByInvoice :many
SELECT ` + invoiceItemColumns + ` FROM invoice_items
WHERE invoice_id = $1
ORDER BY position`

func (q *Queries) ListInvoiceItemsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := q.db.Query(ctx, listInvoiceItemsByInvoice, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InvoiceItem{}
	for rows.Next() {
		i, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// invoiceFilter is shared by ListInvoices and GetInvoiceStats; both bind
// $1..$4 in the same order.
const invoiceFilter = `
WHERE ($1::timestamptz IS NULL OR closed_at >= $1)
  AND ($2::timestamptz IS NULL OR closed_at < $2)
  AND ($3::text IS NULL OR payment_method = $3)
  AND ($4::text IS NULL OR customer_name ILIKE '%' || $4 || '%' OR invoice_number ILIKE '%' || $4 || '%')`

const listInvoices = `-- name: ListInvoices :many
SELECT ` + invoiceColumns + ` FROM invoices` + invoiceFilter + `
ORDER BY closed_at DESC
LIMIT $5 OFFSET $6`

type ListInvoicesParams struct {
	StartDate     pgtype.Timestamptz `json:"start_date"`
	EndDate       pgtype.Timestamptz `json:"end_date"`
	PaymentMethod pgtype.Text        `json:"payment_method"`
	Search        pgtype.Text        `json:"search"`
	Limit         int32              `json:"limit"`
	Offset        int32              `json:"offset"`
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices,
		arg.StartDate,
		arg.EndDate,
		arg.PaymentMethod,
		arg.Search,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Invoice{}
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getInvoiceStats = `-- name: GetInvoiceStats :one
SELECT
    count(*) AS total_invoices,
    COALESCE(sum(total_amount), 0)::numeric AS total_revenue,
    COALESCE(sum(tax_amount), 0)::numeric AS total_tax,
    COALESCE(sum(service_fee), 0)::numeric AS total_service_fee,
    count(*) FILTER (WHERE payment_status = 'paid') AS paid_invoices,
    COALESCE(sum(total_amount) FILTER (WHERE payment_status = 'pending'), 0)::numeric AS pending_revenue
FROM invoices` + invoiceFilter

type GetInvoiceStatsParams struct {
	StartDate     pgtype.Timestamptz `json:"start_date"`
	EndDate       pgtype.Timestamptz `json:"end_date"`
	PaymentMethod pgtype.Text        `json:"payment_method"`
	Search        pgtype.Text        `json:"search"`
}

type GetInvoiceStatsRow struct {
	TotalInvoices   int64          `json:"total_invoices"`
	TotalRevenue    pgtype.Numeric `json:"total_revenue"`
	TotalTax        pgtype.Numeric `json:"total_tax"`
	TotalServiceFee pgtype.Numeric `json:"total_service_fee"`
	PaidInvoices    int64          `json:"paid_invoices"`
	PendingRevenue  pgtype.Numeric `json:"pending_revenue"`
}

func (q *Queries) GetInvoiceStats(ctx context.Context, arg GetInvoiceStatsParams) (GetInvoiceStatsRow, error) {
	row := q.db.QueryRow(ctx, getInvoiceStats,
		arg.StartDate,
		arg.EndDate,
		arg.PaymentMethod,
		arg.Search,
	)
	var i GetInvoiceStatsRow
	err := row.Scan(
		&i.TotalInvoices,
		&i.TotalRevenue,
		&i.TotalTax,
		&i.TotalServiceFee,
		&i.PaidInvoices,
		&i.PendingRevenue,
	)
	return i, err
}

const deleteAllInvoices = `-- name: DeleteAllInvoices :execrows
DELETE FROM invoices`

// DeleteAllInvoices removes every invoice. Settled orders keep settled_at, so
// they are never billed a second time.
func (q *Queries) DeleteAllInvoices(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllInvoices)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
