package service

import (
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/database"
)

// StatusAfterOrder is the table status once an order is placed on it.
// Only a free table changes; reserved and occupied tables keep their status.
func StatusAfterOrder(current database.TableStatus) database.TableStatus {
	if current == database.TableStatusFree {
		return database.TableStatusOccupied
	}
	return current
}

// StatusAfterInvoice is the table status once its invoice is closed.
func StatusAfterInvoice(database.TableStatus) database.TableStatus {
	return database.TableStatusFree
}

// ConsumptionSummary totals the active orders of a table.
type ConsumptionSummary struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int32           `json:"total_items"`
	OrderCount  int             `json:"order_count"`
}

// Summarize totals orders and their items.
func Summarize(orders []database.Order, items []database.OrderItem) ConsumptionSummary {
	sum := ConsumptionSummary{TotalAmount: decimal.Zero, OrderCount: len(orders)}
	for _, o := range orders {
		sum.TotalAmount = sum.TotalAmount.Add(numericToDecimal(o.TotalAmount))
	}
	for _, it := range items {
		if it.Quantity > 0 {
			sum.TotalItems += it.Quantity
		}
	}
	return sum
}
