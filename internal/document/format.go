package document

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var paymentLabels = map[string]string{
	"pending":     "Pendente",
	"cash":        "Dinheiro",
	"credit_card": "Cartão de Crédito",
	"debit_card":  "Cartão de Débito",
	"pix":         "PIX",
}

var orderStatusLabels = map[string]string{
	"pending":   "Pendente",
	"preparing": "Preparando",
	"ready":     "Pronto",
	"delivered": "Entregue",
	"cancelled": "Cancelado",
}

// FormatMoney renders d as Brazilian reais, e.g. "R$ 1.234,50".
func FormatMoney(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// PaymentLabel is the display name of a payment method.
func PaymentLabel(method string) string {
	if l, ok := paymentLabels[method]; ok {
		return l
	}
	return method
}

func statusLabel(status string) string {
	if l, ok := orderStatusLabels[status]; ok {
		return l
	}
	return status
}

func percent(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1) + "%"
}

func formatDate(loc *time.Location) func(time.Time) string {
	return func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format("02/01/2006 15:04")
	}
}

func formatDay(loc *time.Location) func(time.Time) string {
	return func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format("02/01/2006")
	}
}
