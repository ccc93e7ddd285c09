package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/bierserv/api/internal/billing"
	"github.com/bierserv/api/internal/cache"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/ws"
)

const (
	// DefaultCustomerName is stored when the invoice has no customer name.
	DefaultCustomerName = "Cliente Anônimo"

	maxCloseRetries     = 3
	defaultRetryBase    = 50 * time.Millisecond
	idempotencyTTL      = 24 * time.Hour
	idempotencyScope    = "close-table"
	claimPending        = "in-progress"
	defaultClaimWait    = 5 * time.Second
	invoiceNumberFormat = "INV-%06d"
)

// InvoiceStore defines the DB methods needed to close a table.
// Satisfied by *database.Queries (and its WithTx variant).
type InvoiceStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	ListOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	NextInvoiceNumber(ctx context.Context) (int64, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	CreateInvoiceItem(ctx context.Context, arg database.CreateInvoiceItemParams) (database.InvoiceItem, error)
	SettleOrders(ctx context.Context, arg database.SettleOrdersParams) (int64, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	ListInvoiceItemsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]database.InvoiceItem, error)
}

// NewInvoiceStore creates an InvoiceStore from a DBTX (pool or tx).
type NewInvoiceStore func(db database.DBTX) InvoiceStore

// RatesProvider returns the fee rates currently configured.
// Satisfied by *settings.Provider.
type RatesProvider interface {
	Rates(ctx context.Context) (billing.FeeRates, error)
}

// IdempotencyStore remembers which invoice a client request produced.
// A key holds claimPending while its request runs, then the invoice id.
// Satisfied by *cache.Client.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// CloseTableRequest is the validated input for closing a table's bill.
type CloseTableRequest struct {
	TableID          uuid.UUID
	PaymentMethod    database.PaymentMethod
	CustomerName     string
	CustomerDocument string
	Notes            string
	ServiceFee       *bool // nil means enabled
	WaiterID         uuid.UUID
	IdempotencyKey   string
}

// InvoiceResult is a persisted invoice with its lines.
type InvoiceResult struct {
	Invoice  database.Invoice
	Items    []database.InvoiceItem
	OrderIDs []uuid.UUID
	// Replayed is set when an earlier request with the same idempotency key
	// produced the invoice.
	Replayed bool
}

// Preview is the consumption summary shown before closing.
type Preview struct {
	Table      database.Table   `json:"-"`
	Lines      []billing.Line   `json:"lines"`
	Fees       billing.Fees     `json:"fees"`
	Rates      billing.FeeRates `json:"-"`
	OrderCount int              `json:"order_count"`
	ItemCount  int32            `json:"item_count"`
}

// InvoiceService composes invoices from a table's orders.
type InvoiceService struct {
	pool     TxBeginner
	db       database.DBTX
	newStore NewInvoiceStore
	rates    RatesProvider
	idem     IdempotencyStore
	events   EventPublisher
	recorder WorkflowRecorder

	retryBase time.Duration
	claimWait time.Duration
}

// NewInvoiceService creates an InvoiceService. idem, events and recorder may
// be nil.
func NewInvoiceService(
	pool TxBeginner,
	db database.DBTX,
	newStore NewInvoiceStore,
	rates RatesProvider,
	idem IdempotencyStore,
	events EventPublisher,
	recorder WorkflowRecorder,
) *InvoiceService {
	if events == nil {
		events = noopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &InvoiceService{
		pool:      pool,
		db:        db,
		newStore:  newStore,
		rates:     rates,
		idem:      idem,
		events:    events,
		recorder:  recorder,
		retryBase: defaultRetryBase,
		claimWait: defaultClaimWait,
	}
}

// Preview aggregates the open orders of a table and computes the fees
// without writing anything.
func (s *InvoiceService) Preview(ctx context.Context, tableID uuid.UUID, serviceFee *bool) (*Preview, error) {
	store := s.newStore(s.db)

	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	orders, err := store.ListOpenOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	rates, err := s.currentRates(ctx, serviceFee)
	if err != nil {
		return nil, err
	}

	lines, err := aggregateOrders(ctx, store, orders)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Table:      table,
		Lines:      lines,
		Fees:       billing.CalculateFees(billing.Subtotal(lines), rates),
		Rates:      rates,
		OrderCount: len(orders),
		ItemCount:  countItems(lines),
	}, nil
}

// CloseTable turns every open order of the table into one invoice, settles
// the orders and frees the table, all in one transaction. Transient conflicts
// are retried.
func (s *InvoiceService) CloseTable(ctx context.Context, req CloseTableRequest) (*InvoiceResult, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = database.PaymentMethodPending
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		req.CustomerName = DefaultCustomerName
	}

	rates, err := s.currentRates(ctx, req.ServiceFee)
	if err != nil {
		return nil, err
	}

	idemKey := s.idempotencyKey(req)
	if idemKey != "" {
		res, claimed, err := s.claim(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		if !claimed {
			idemKey = ""
		}
	}

	var (
		result        *InvoiceResult
		table         database.Table
		previousTable database.TableStatus
	)
	backoff := retry.WithMaxRetries(maxCloseRetries, retry.NewExponential(s.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		result, table, previousTable, err = s.closeTx(ctx, req, rates)
		if err != nil && isTransientConflict(err) {
			s.recorder.CloseRetried()
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		s.release(idemKey)
		return nil, err
	}

	s.afterClose(ctx, idemKey, result, table, previousTable)
	return result, nil
}

func (s *InvoiceService) closeTx(ctx context.Context, req CloseTableRequest, rates billing.FeeRates) (*InvoiceResult, database.Table, database.TableStatus, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.Table{}, "", ErrTableNotFound
		}
		return nil, database.Table{}, "", fmt.Errorf("lock table: %w", err)
	}

	orders, err := store.ListOpenOrdersByTableForUpdate(ctx, table.ID)
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("lock open orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, database.Table{}, "", ErrNothingToInvoice
	}

	lines, err := aggregateOrders(ctx, store, orders)
	if err != nil {
		return nil, database.Table{}, "", err
	}
	fees := billing.CalculateFees(billing.Subtotal(lines), rates)

	seq, err := store.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("next invoice number: %w", err)
	}

	invoice, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		InvoiceNumber:        fmt.Sprintf(invoiceNumberFormat, seq),
		TableID:              table.ID,
		TableNumber:          table.Number,
		Subtotal:             decimalToNumeric(fees.Subtotal),
		ServiceFee:           decimalToNumeric(fees.ServiceFee),
		TaxAmount:            decimalToNumeric(fees.TaxAmount),
		TotalAmount:          decimalToNumeric(fees.Total),
		ServiceFeeEnabled:    rates.ServiceFeeEnabled,
		ServiceFeePercentage: decimalToNumeric(rates.ServiceFeePercentage),
		TaxPercentage:        decimalToNumeric(rates.TaxPercentage),
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        billing.PaymentStatusFor(req.PaymentMethod),
		CustomerName:         req.CustomerName,
		CustomerDocument:     optionalText(req.CustomerDocument),
		Notes:                optionalText(req.Notes),
		WaiterID:             optionalUUID(req.WaiterID),
	})
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("create invoice: %w", err)
	}

	items := make([]database.InvoiceItem, 0, len(lines))
	for pos, line := range lines {
		item, err := store.CreateInvoiceItem(ctx, database.CreateInvoiceItemParams{
			InvoiceID:   invoice.ID,
			ProductName: line.ProductName,
			Volume:      line.Volume,
			UnitPrice:   decimalToNumeric(line.UnitPrice),
			Quantity:    line.Quantity,
			LineTotal:   decimalToNumeric(line.LineTotal),
			Position:    int32(pos),
		})
		if err != nil {
			return nil, database.Table{}, "", fmt.Errorf("create invoice item: %w", err)
		}
		items = append(items, item)
	}

	orderIDs := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}
	settled, err := store.SettleOrders(ctx, database.SettleOrdersParams{
		InvoiceID: invoice.ID,
		OrderIDs:  orderIDs,
	})
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("settle orders: %w", err)
	}
	if settled != int64(len(orderIDs)) {
		return nil, database.Table{}, "", fmt.Errorf("settle orders: %w: %d of %d updated", ErrStatusChanged, settled, len(orderIDs))
	}

	previous := table.Status
	freed, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     table.ID,
		Status: StatusAfterInvoice(previous),
	})
	if err != nil {
		return nil, database.Table{}, "", fmt.Errorf("free table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, database.Table{}, "", fmt.Errorf("commit tx: %w", err)
	}

	return &InvoiceResult{Invoice: invoice, Items: items, OrderIDs: orderIDs}, freed, previous, nil
}

// afterClose runs the best-effort side effects of a committed closing.
func (s *InvoiceService) afterClose(ctx context.Context, idemKey string, res *InvoiceResult, table database.Table, previous database.TableStatus) {
	inv := res.Invoice
	var err error

	if idemKey != "" {
		// The claim must not stay pending if the client went away.
		err = multierr.Append(err, s.idem.Set(context.WithoutCancel(ctx), idemKey, inv.ID.String(), idempotencyTTL))
	}

	total, _ := numericToDecimal(inv.TotalAmount).Float64()
	s.recorder.InvoiceClosed(string(inv.PaymentMethod), total)

	invEvent := InvoiceEvent{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		TableID:       inv.TableID,
		TableNumber:   inv.TableNumber,
		TotalAmount:   numericToDecimal(inv.TotalAmount).StringFixed(2),
		PaymentMethod: inv.PaymentMethod,
		OrderCount:    len(res.OrderIDs),
		ClosedAt:      inv.ClosedAt,
	}
	topics := []string{ws.TopicStaff, ws.TableTopic(table.ID)}
	err = multierr.Append(err, publishAll(s.events, ws.EventInvoiceCreated, invEvent, topics...))
	err = multierr.Append(err, publishAll(s.events, ws.EventTableStatusChanged, tableEvent(table, previous), topics...))

	if err != nil {
		log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("invoice side effects incomplete")
	}
}

// Get loads an invoice with its lines.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceResult, error) {
	store := s.newStore(s.db)
	inv, err := store.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	items, err := store.ListInvoiceItemsByInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	return &InvoiceResult{Invoice: inv, Items: items}, nil
}

// --- Helpers ---

func (s *InvoiceService) currentRates(ctx context.Context, serviceFee *bool) (billing.FeeRates, error) {
	rates := billing.DefaultRates()
	if s.rates != nil {
		r, err := s.rates.Rates(ctx)
		if err != nil {
			return billing.FeeRates{}, fmt.Errorf("load fee rates: %w", err)
		}
		rates = r
	}
	if serviceFee != nil {
		rates = rates.WithServiceFee(*serviceFee)
	}
	return rates, nil
}

func (s *InvoiceService) idempotencyKey(req CloseTableRequest) string {
	key := strings.TrimSpace(req.IdempotencyKey)
	if s.idem == nil || key == "" {
		return ""
	}
	return s.idem.IdempotencyKey(idempotencyScope, req.TableID.String()+":"+key)
}

// claim reserves key for this request with SETNX. When another request
// holds the key it polls until that request stores its invoice id, which is
// then replayed, or gives up with ErrRequestInProgress. claimed is false when
// Redis could not be reached and the close should run without a key.
func (s *InvoiceService) claim(ctx context.Context, key string) (res *InvoiceResult, claimed bool, err error) {
	backoff := retry.WithMaxDuration(s.claimWait, retry.NewConstant(s.retryBase))
	res, err = retry.DoValue(ctx, backoff, func(ctx context.Context) (*InvoiceResult, error) {
		ok, err := s.idem.SetNX(ctx, key, claimPending, idempotencyTTL)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency claim failed, closing without key")
			return nil, nil
		}
		if ok {
			claimed = true
			return nil, nil
		}

		raw, err := s.idem.Get(ctx, key)
		switch {
		case cache.IsMiss(err):
			// Released by a failed request; claim it on the next attempt.
			return nil, retry.RetryableError(ErrRequestInProgress)
		case err != nil:
			log.Warn().Err(err).Msg("idempotency lookup failed, closing without key")
			return nil, nil
		case raw == claimPending:
			return nil, retry.RetryableError(ErrRequestInProgress)
		}
		return s.replay(ctx, raw)
	})
	if err != nil {
		return nil, false, err
	}
	return res, claimed, nil
}

// release drops a claim whose close failed so the client can retry.
func (s *InvoiceService) release(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.idem.Del(ctx, key); err != nil {
		log.Warn().Err(err).Msg("idempotency release failed")
	}
}

// replay loads the invoice recorded as raw.
func (s *InvoiceService) replay(ctx context.Context, raw string) (*InvoiceResult, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("idempotency record %q: %w", raw, err)
	}
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Replayed = true
	return res, nil
}

type itemLister interface {
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
}

func aggregateOrders(ctx context.Context, store itemLister, orders []database.Order) ([]billing.Line, error) {
	if len(orders) == 0 {
		return []billing.Line{}, nil
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	rows, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	items := make([]billing.Item, len(rows))
	for i, r := range rows {
		items[i] = billing.Item{
			ProductName: r.ProductName,
			Volume:      r.Volume,
			UnitPrice:   numericToDecimal(r.UnitPrice),
			Quantity:    r.Quantity,
			LineTotal:   numericToDecimal(r.LineTotal),
		}
	}
	return billing.Aggregate(items), nil
}

func countItems(lines []billing.Line) int32 {
	var n int32
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
