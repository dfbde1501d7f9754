package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement outcomes.
type CheckoutMetrics struct {
	placed        prometheus.Counter
	failed        *prometheus.CounterVec
	orderValue    prometheus.Histogram
	itemsPerOrder prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders successfully placed.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Order placements rejected, by reason.",
	}, []string{"reason"})
	orderValue := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_total_amount",
		Help:    "Distribution of placed order totals in currency units.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	itemsPerOrder := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_line_items",
		Help:    "Distribution of line item counts per placed order.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(placed, failed, orderValue, itemsPerOrder)
	return &CheckoutMetrics{
		placed:        placed,
		failed:        failed,
		orderValue:    orderValue,
		itemsPerOrder: itemsPerOrder,
	}
}

// ObservePlaced records a successful placement.
func (m *CheckoutMetrics) ObservePlaced(totalAmount float64, itemCount int) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
	m.orderValue.Observe(totalAmount)
	m.itemsPerOrder.Observe(float64(itemCount))
}

// IncFailed increments the failure counter for the given reason label.
func (m *CheckoutMetrics) IncFailed(reason string) {
	if m == nil || m.failed == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.failed.WithLabelValues(reason).Inc()
}
