// Package billing holds the pure money arithmetic of a table closing:
// merging order items into invoice lines and applying service fee and tax.
package billing

import "github.com/shopspring/decimal"

// Item is one order item as it enters aggregation.
type Item struct {
	ProductName string
	Volume      string
	UnitPrice   decimal.Decimal
	Quantity    int32
	LineTotal   decimal.Decimal
}

// Line is a deduplicated invoice line.
type Line struct {
	ProductName string          `json:"product_name"`
	Volume      string          `json:"volume"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type lineKey struct {
	name   string
	volume string
}

// Aggregate merges items sharing (product name, volume). Quantities add up,
// the unit price is the one of the first item seen for the key and the line
// total is recomputed from both. Lines keep first-seen order. Items with a
// non-positive quantity are skipped.
func Aggregate(items []Item) []Line {
	index := make(map[lineKey]int, len(items))
	lines := make([]Line, 0, len(items))

	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		k := lineKey{name: it.ProductName, volume: it.Volume}
		if i, ok := index[k]; ok {
			lines[i].Quantity += it.Quantity
			lines[i].LineTotal = lineTotal(lines[i].UnitPrice, lines[i].Quantity)
			continue
		}
		price := resolveUnitPrice(it)
		index[k] = len(lines)
		lines = append(lines, Line{
			ProductName: it.ProductName,
			Volume:      it.Volume,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			LineTotal:   lineTotal(price, it.Quantity),
		})
	}
	return lines
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// resolveUnitPrice falls back to line_total / quantity when the stored unit
// price is missing. Quantity is positive here.
func resolveUnitPrice(it Item) decimal.Decimal {
	if it.UnitPrice.IsPositive() {
		return it.UnitPrice
	}
	if it.LineTotal.IsPositive() {
		return it.LineTotal.Div(decimal.NewFromInt32(it.Quantity)).Round(2)
	}
	return decimal.Zero
}

func lineTotal(price decimal.Decimal, qty int32) decimal.Decimal {
	return price.Mul(decimal.NewFromInt32(qty)).Round(2)
}
