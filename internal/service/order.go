package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/ws"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to submit and move orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListPriceVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductPriceVariant, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// SubmitOrderRequest is the validated input for placing an order on a table.
type SubmitOrderRequest struct {
	TableID       uuid.UUID
	Source        database.OrderSource
	WaiterID      uuid.UUID // uuid.Nil for customer orders
	CustomerNotes string
	Items         []SubmitItemRequest
}

type SubmitItemRequest struct {
	ProductID uuid.UUID
	Volume    string
	Quantity  int32
}

// UpdateStatusRequest moves one order along the workflow.
type UpdateStatusRequest struct {
	OrderID         uuid.UUID
	Status          database.OrderStatus
	ActorID         uuid.UUID
	ExpectedVersion *int32
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService places orders, keeps table occupancy in step and drives the
// status workflow.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	events   EventPublisher
	recorder WorkflowRecorder
}

// NewOrderService creates a new OrderService. events and recorder may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, events EventPublisher, recorder WorkflowRecorder) *OrderService {
	if events == nil {
		events = noopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &OrderService{pool: pool, newStore: newStore, events: events, recorder: recorder}
}

// pricedItem is an order line resolved against the catalog.
type pricedItem struct {
	product   database.Product
	volume    string
	unitPrice decimal.Decimal
	quantity  int32
	lineTotal decimal.Decimal
}

// SubmitOrder prices the items from the catalog and inserts the order. A free
// table becomes occupied in the same transaction.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}
	if req.Source == "" {
		req.Source = database.OrderSourceStaff
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}

	total := decimal.Zero
	priced := make([]pricedItem, 0, len(req.Items))
	for i, item := range req.Items {
		p, err := s.priceItem(ctx, store, item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		total = total.Add(p.lineTotal)
		priced = append(priced, p)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:       table.ID,
		Source:        req.Source,
		TotalAmount:   decimalToNumeric(total),
		CustomerNotes: optionalText(req.CustomerNotes),
		WaiterID:      optionalUUID(req.WaiterID),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(priced))
	for pos, p := range priced {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			ProductID:   pgtype.UUID{Bytes: p.product.ID, Valid: true},
			ProductName: p.product.Name,
			Volume:      p.volume,
			UnitPrice:   decimalToNumeric(p.unitPrice),
			Quantity:    p.quantity,
			LineTotal:   decimalToNumeric(p.lineTotal),
			Position:    int32(pos),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	previous := table.Status
	next := StatusAfterOrder(previous)
	if next != previous {
		table, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     table.ID,
			Status: next,
		})
		if err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.recorder.OrderSubmitted(string(order.Source))
	payload := orderEvent(order, "")
	perr := publishAll(s.events, ws.EventOrderCreated, payload, ws.TopicStaff, ws.TableTopic(table.ID))
	if next != previous {
		perr = multierr.Append(perr, publishAll(s.events, ws.EventTableStatusChanged, tableEvent(table, previous), ws.TopicStaff))
	}
	if perr != nil {
		log.Warn().Err(perr).Str("order_id", order.ID.String()).Msg("order events not delivered")
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// priceItem resolves the unit price for the requested volume. An empty
// volume is accepted when the product has a single price.
func (s *OrderService) priceItem(ctx context.Context, store OrderStore, item SubmitItemRequest) (pricedItem, error) {
	product, err := store.GetProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricedItem{}, ErrProductNotFound
		}
		return pricedItem{}, fmt.Errorf("get product: %w", err)
	}
	if !product.IsAvailable || product.ComingSoon {
		return pricedItem{}, fmt.Errorf("%s: %w", product.Name, ErrProductUnavailable)
	}

	variants, err := store.ListPriceVariantsByProduct(ctx, product.ID)
	if err != nil {
		return pricedItem{}, fmt.Errorf("list price variants: %w", err)
	}

	volume := strings.TrimSpace(item.Volume)
	var chosen *database.ProductPriceVariant
	switch {
	case volume == "" && len(variants) == 1:
		chosen = &variants[0]
	case volume == "" && len(variants) > 1:
		return pricedItem{}, fmt.Errorf("%s: %w", product.Name, ErrVolumeRequired)
	default:
		for i := range variants {
			if strings.EqualFold(variants[i].Volume, volume) {
				chosen = &variants[i]
				break
			}
		}
	}
	if chosen == nil {
		return pricedItem{}, fmt.Errorf("%s %q: %w", product.Name, volume, ErrVolumeNotFound)
	}

	unit := numericToDecimal(chosen.Price)
	return pricedItem{
		product:   product,
		volume:    chosen.Volume,
		unitPrice: unit,
		quantity:  item.Quantity,
		lineTotal: unit.Mul(decimal.NewFromInt32(item.Quantity)).Round(2),
	}, nil
}

// UpdateStatus applies one workflow transition as a compare-and-set on the
// order's status and version.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*OrderResult, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return nil, fmt.Errorf("%w: order is at version %d", ErrStaleVersion, current.Version)
	}
	if err := ValidateTransition(current.Status, req.Status); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            current.ID,
		Status:        req.Status,
		WaiterID:      optionalUUID(req.ActorID),
		CurrentStatus: current.Status,
		Version:       current.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.recorder.OrderTransition(string(current.Status), string(updated.Status))
	payload := orderEvent(updated, current.Status)
	if err := publishAll(s.events, ws.EventOrderStatusChanged, payload, ws.TopicStaff, ws.TableTopic(updated.TableID)); err != nil {
		log.Warn().Err(err).Str("order_id", updated.ID.String()).Msg("order events not delivered")
	}

	return &OrderResult{Order: updated, Items: items}, nil
}

// Cancel moves a pending order to cancelled.
func (s *OrderService) Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*OrderResult, error) {
	return s.UpdateStatus(ctx, UpdateStatusRequest{
		OrderID: orderID,
		Status:  database.OrderStatusCancelled,
		ActorID: actorID,
	})
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	v, err := n.Value()
	if err != nil || v == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func optionalUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
