package billing

import (
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/database"
)

// Rates applied when no settings row has been saved yet.
var (
	DefaultServiceFeePercentage = decimal.NewFromInt(10)
	DefaultTaxPercentage        = decimal.NewFromInt(5)
)

var hundred = decimal.NewFromInt(100)

// FeeRates are the percentages applied on top of a subtotal.
type FeeRates struct {
	ServiceFeePercentage decimal.Decimal
	TaxPercentage        decimal.Decimal
	ServiceFeeEnabled    bool
}

// DefaultRates returns the default rates with the service fee on.
func DefaultRates() FeeRates {
	return FeeRates{
		ServiceFeePercentage: DefaultServiceFeePercentage,
		TaxPercentage:        DefaultTaxPercentage,
		ServiceFeeEnabled:    true,
	}
}

// WithServiceFee returns a copy of r with the service fee toggled.
func (r FeeRates) WithServiceFee(enabled bool) FeeRates {
	r.ServiceFeeEnabled = enabled
	return r
}

// Fees is the money breakdown of an invoice.
type Fees struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	Total      decimal.Decimal `json:"total_amount"`
}

// CalculateFees applies r to subtotal. Each component is rounded to cents
// before summing, so Total always equals the sum of the stored parts. Tax is
// charged whether or not the service fee is enabled.
func CalculateFees(subtotal decimal.Decimal, r FeeRates) Fees {
	subtotal = subtotal.Round(2)

	serviceFee := decimal.Zero
	if r.ServiceFeeEnabled {
		serviceFee = subtotal.Mul(r.ServiceFeePercentage).Div(hundred).Round(2)
	}
	tax := subtotal.Mul(r.TaxPercentage).Div(hundred).Round(2)

	return Fees{
		Subtotal:   subtotal,
		ServiceFee: serviceFee,
		TaxAmount:  tax,
		Total:      subtotal.Add(serviceFee).Add(tax),
	}
}

// PaymentStatusFor derives the payment status from the chosen method: only
// "pending" leaves the invoice unpaid.
func PaymentStatusFor(method database.PaymentMethod) database.PaymentStatus {
	if method == database.PaymentMethodPending || method == "" {
		return database.PaymentStatusPending
	}
	return database.PaymentStatusPaid
}
