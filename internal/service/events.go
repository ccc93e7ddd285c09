package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bierserv/api/internal/database"
)

// EventPublisher pushes an event to the subscribers of a topic.
// Satisfied by *ws.Hub.
type EventPublisher interface {
	Publish(topic, eventType string, payload any) error
}

// WorkflowRecorder records workflow counters. Satisfied by
// *metrics.WorkflowMetrics.
type WorkflowRecorder interface {
	OrderSubmitted(source string)
	OrderTransition(from, to string)
	InvoiceClosed(paymentMethod string, total float64)
	CloseRetried()
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) error { return nil }

type noopRecorder struct{}

func (noopRecorder) OrderSubmitted(string)          {}
func (noopRecorder) OrderTransition(string, string) {}
func (noopRecorder) InvoiceClosed(string, float64)  {}
func (noopRecorder) CloseRetried()                  {}

// publishAll sends one event to every topic and combines the failures.
func publishAll(p EventPublisher, eventType string, payload any, topics ...string) error {
	var err error
	for _, topic := range topics {
		err = multierr.Append(err, p.Publish(topic, eventType, payload))
	}
	return err
}

// --- Event payloads ---

type OrderEvent struct {
	OrderID     uuid.UUID            `json:"order_id"`
	TableID     uuid.UUID            `json:"table_id"`
	Status      database.OrderStatus `json:"status"`
	Previous    database.OrderStatus `json:"previous_status,omitempty"`
	Source      database.OrderSource `json:"source"`
	TotalAmount string               `json:"total_amount"`
	Version     int32                `json:"version"`
}

type TableEvent struct {
	TableID  uuid.UUID            `json:"table_id"`
	Number   string               `json:"number"`
	Status   database.TableStatus `json:"status"`
	Previous database.TableStatus `json:"previous_status"`
	Version  int32                `json:"version"`
}

type InvoiceEvent struct {
	InvoiceID     uuid.UUID              `json:"invoice_id"`
	InvoiceNumber string                 `json:"invoice_number"`
	TableID       uuid.UUID              `json:"table_id"`
	TableNumber   string                 `json:"table_number"`
	TotalAmount   string                 `json:"total_amount"`
	PaymentMethod database.PaymentMethod `json:"payment_method"`
	OrderCount    int                    `json:"order_count"`
	ClosedAt      time.Time              `json:"closed_at"`
}

func orderEvent(o database.Order, previous database.OrderStatus) OrderEvent {
	return OrderEvent{
		OrderID:     o.ID,
		TableID:     o.TableID,
		Status:      o.Status,
		Previous:    previous,
		Source:      o.Source,
		TotalAmount: numericToDecimal(o.TotalAmount).StringFixed(2),
		Version:     o.Version,
	}
}

func tableEvent(t database.Table, previous database.TableStatus) TableEvent {
	return TableEvent{
		TableID:  t.ID,
		Number:   t.Number,
		Status:   t.Status,
		Previous: previous,
		Version:  t.Version,
	}
}
