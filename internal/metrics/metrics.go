package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bierserv"

// HTTPMetrics records request counts and latency per route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on reg. A nil registerer yields a
// recorder that drops everything.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// WorkflowMetrics covers the order and invoice lifecycle.
type WorkflowMetrics struct {
	ordersSubmitted  *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	invoicesClosed   *prometheus.CounterVec
	closeRetries     prometheus.Counter
	revenue          prometheus.Counter
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	ordersSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_submitted_total",
		Help:      "Orders submitted by source.",
	}, []string{"source"})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions.",
	}, []string{"from", "to"})
	invoicesClosed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_closed_total",
		Help:      "Invoices created by payment method.",
	}, []string{"payment_method"})
	closeRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_close_retries_total",
		Help:      "Table closings retried after a transient database conflict.",
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_revenue_total",
		Help:      "Sum of invoice totals.",
	})
	reg.MustRegister(ordersSubmitted, orderTransitions, invoicesClosed, closeRetries, revenue)
	return &WorkflowMetrics{
		ordersSubmitted:  ordersSubmitted,
		orderTransitions: orderTransitions,
		invoicesClosed:   invoicesClosed,
		closeRetries:     closeRetries,
		revenue:          revenue,
	}
}

func (m *WorkflowMetrics) OrderSubmitted(source string) {
	if m == nil || m.ordersSubmitted == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *WorkflowMetrics) OrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// InvoiceClosed counts the invoice and adds its total to the revenue counter.
// Negative totals are ignored.
func (m *WorkflowMetrics) InvoiceClosed(paymentMethod string, total float64) {
	if m == nil || m.invoicesClosed == nil {
		return
	}
	m.invoicesClosed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	if total > 0 {
		m.revenue.Add(total)
	}
}

func (m *WorkflowMetrics) CloseRetried() {
	if m == nil || m.closeRetries == nil {
		return
	}
	m.closeRetries.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
