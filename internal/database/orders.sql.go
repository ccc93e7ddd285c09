package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, status, source, total_amount, customer_notes, waiter_id,
    invoice_id, settled_at, archived_at, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.Source,
		&i.TotalAmount,
		&i.CustomerNotes,
		&i.WaiterID,
		&i.InvoiceID,
		&i.SettledAt,
		&i.ArchivedAt,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(ctx context.Context, db DBTX, query string, args ...interface{}) ([]Order, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (table_id, source, total_amount, customer_notes, waiter_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID       uuid.UUID      `json:"table_id"`
	Source        OrderSource    `json:"source"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	CustomerNotes pgtype.Text    `json:"customer_notes"`
	WaiterID      pgtype.UUID    `json:"waiter_id"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.TableID,
		arg.Source,
		arg.TotalAmount,
		arg.CustomerNotes,
		arg.WaiterID,
	)
	return scanOrder(row)
}

const orderItemColumns = `id, order_id, product_id, product_name, volume, unit_price, quantity, line_total, position`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.Volume,
		&i.UnitPrice,
		&i.Quantity,
		&i.LineTotal,
		&i.Position,
	)
	return i, err
}

func collectOrderItems(ctx context.Context, db DBTX, query string, args ...interface{}) ([]OrderItem, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, product_name, volume, unit_price, quantity, line_total, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   pgtype.UUID    `json:"product_id"`
	ProductName string         `json:"product_name"`
	Volume      string         `json:"volume"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	LineTotal   pgtype.Numeric `json:"line_total"`
	Position    int32          `json:"position"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.Volume,
		arg.UnitPrice,
		arg.Quantity,
		arg.LineTotal,
		arg.Position,
	)
	return scanOrderItem(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR table_id = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
  AND ($5::boolean = true OR archived_at IS NULL)
ORDER BY created_at DESC
LIMIT $6 OFFSET $7`

type ListOrdersParams struct {
	Status          pgtype.Text        `json:"status"`
	TableID         pgtype.UUID        `json:"table_id"`
	StartDate       pgtype.Timestamptz `json:"start_date"`
	EndDate         pgtype.Timestamptz `json:"end_date"`
	IncludeArchived bool               `json:"include_archived"`
	Limit           int32              `json:"limit"`
	Offset          int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	return collectOrders(ctx, q.db, listOrders,
		arg.Status,
		arg.TableID,
		arg.StartDate,
		arg.EndDate,
		arg.IncludeArchived,
		arg.Limit,
		arg.Offset,
	)
}

const listOrdersInRange = `-- name: ListOrdersInRange :many
SELECT ` + orderColumns + ` FROM orders
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at`

type ListOrdersInRangeParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (q *Queries) ListOrdersInRange(ctx context.Context, arg ListOrdersInRangeParams) ([]Order, error) {
	return collectOrders(ctx, q.db, listOrdersInRange, arg.StartDate, arg.EndDate)
}

const listOpenOrdersByTable = `-- name: ListOpenOrdersByTable :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status <> 'cancelled' AND settled_at IS NULL
ORDER BY created_at, id`

// ListOpenOrdersByTable returns the non-cancelled orders of a table that no
// invoice has settled yet.
func (q *Queries) ListOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(ctx, q.db, listOpenOrdersByTable, tableID)
}

const listOpenOrdersByTableForUpdate = `-- name: ListOpenOrdersByTableForUpdate :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status <> 'cancelled' AND settled_at IS NULL
ORDER BY created_at, id
FOR UPDATE`

func (q *Queries) ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(ctx, q.db, listOpenOrdersByTableForUpdate, tableID)
}

const listActiveOrdersByTable = `-- name: ListActiveOrdersByTable :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status NOT IN ('delivered', 'cancelled')
ORDER BY created_at, id`

func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(ctx, q.db, listActiveOrdersByTable, tableID)
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1
ORDER BY position`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return collectOrderItems(ctx, q.db, listOrderItemsByOrder, orderID)
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT oi.id, oi.order_id, oi.product_id, oi.product_name, oi.volume, oi.unit_price,
    oi.quantity, oi.line_total, oi.position
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.order_id = ANY($1::uuid[])
ORDER BY o.created_at, o.id, oi.position`

// ListOrderItemsByOrders returns items in order creation order, then item position.
func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	return collectOrderItems(ctx, q.db, listOrderItemsByOrders, orderIDs)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET
    status = $2,
    waiter_id = COALESCE($3, waiter_id),
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND status = $4 AND version = $5
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            uuid.UUID   `json:"id"`
	Status        OrderStatus `json:"status"`
	WaiterID      pgtype.UUID `json:"waiter_id"`
	CurrentStatus OrderStatus `json:"current_status"`
	Version       int32       `json:"version"`
}

// UpdateOrderStatus is a compare-and-set on (status, version). It returns
// pgx.ErrNoRows when the order changed since it was read.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.WaiterID,
		arg.CurrentStatus,
		arg.Version,
	)
	return scanOrder(row)
}

const settleOrders = `-- name: SettleOrders :execrows
UPDATE orders SET
    status = 'delivered',
    invoice_id = $1,
    settled_at = now(),
    version = version + 1,
    updated_at = now()
WHERE id = ANY($2::uuid[]) AND status <> 'cancelled' AND settled_at IS NULL`

type SettleOrdersParams struct {
	InvoiceID uuid.UUID   `json:"invoice_id"`
	OrderIDs  []uuid.UUID `json:"order_ids"`
}

func (q *Queries) SettleOrders(ctx context.Context, arg SettleOrdersParams) (int64, error) {
	result, err := q.db.Exec(ctx, settleOrders, arg.InvoiceID, arg.OrderIDs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const archiveOrders = `-- name: ArchiveOrders :execrows
UPDATE orders SET archived_at = now(), updated_at = now()
WHERE archived_at IS NULL
  AND status IN ('delivered', 'cancelled')
  AND ($1::uuid[] IS NULL OR id = ANY($1::uuid[]))`

// ArchiveOrders hides resolved orders. A nil id list archives every resolved order.
func (q *Queries) ArchiveOrders(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, archiveOrders, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const restoreOrders = `-- name: RestoreOrders :execrows
UPDATE orders SET archived_at = NULL, updated_at = now()
WHERE archived_at IS NOT NULL
  AND ($1::uuid[] IS NULL OR id = ANY($1::uuid[]))`

func (q *Queries) RestoreOrders(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, restoreOrders, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrdersInRange = `-- name: DeleteOrdersInRange :execrows
DELETE FROM orders WHERE created_at >= $1 AND created_at < $2`

type DeleteOrdersInRangeParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (q *Queries) DeleteOrdersInRange(ctx context.Context, arg DeleteOrdersInRangeParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrdersInRange, arg.StartDate, arg.EndDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countOrdersByStatusSince = `-- name: CountOrdersByStatusSince :many
SELECT status, count(*) AS count
FROM orders
WHERE created_at >= $1
GROUP BY status
ORDER BY status`

type CountOrdersByStatusSinceRow struct {
	Status OrderStatus `json:"status"`
	Count  int64       `json:"count"`
}

func (q *Queries) CountOrdersByStatusSince(ctx context.Context, since time.Time) ([]CountOrdersByStatusSinceRow, error) {
	rows, err := q.db.Query(ctx, countOrdersByStatusSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CountOrdersByStatusSinceRow{}
	for rows.Next() {
		var i CountOrdersByStatusSinceRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
