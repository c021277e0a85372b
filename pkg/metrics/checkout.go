package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records basket and order activity.
type CheckoutMetrics struct {
	duration        *prometheus.HistogramVec
	ordersPlaced    *prometheus.CounterVec
	ordersFailed    *prometheus.CounterVec
	basketMutations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order placement in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"order_type"})
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Successfully placed orders.",
	}, []string{"order_type"})
	ordersFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Order placements rejected or rolled back.",
	}, []string{"order_type", "reason"})
	basketMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_mutations_total",
		Help: "Basket write operations by kind.",
	}, []string{"operation"})
	reg.MustRegister(duration, ordersPlaced, ordersFailed, basketMutations)
	return &CheckoutMetrics{
		duration:        duration,
		ordersPlaced:    ordersPlaced,
		ordersFailed:    ordersFailed,
		basketMutations: basketMutations,
	}
}

// ObserveCheckout records the duration of a placement attempt.
func (c *CheckoutMetrics) ObserveCheckout(orderType string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(orderType)).Observe(duration.Seconds())
}

// IncOrderPlaced increments the placed-order counter.
func (c *CheckoutMetrics) IncOrderPlaced(orderType string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(orderType)).Inc()
}

// IncOrderFailed increments the failed-order counter with a reason.
func (c *CheckoutMetrics) IncOrderFailed(orderType, reason string) {
	if c == nil || c.ordersFailed == nil {
		return
	}
	c.ordersFailed.WithLabelValues(normalizeLabel(orderType), normalizeLabel(reason)).Inc()
}

// IncBasketMutation increments the basket mutation counter for an operation.
func (c *CheckoutMetrics) IncBasketMutation(operation string) {
	if c == nil || c.basketMutations == nil {
		return
	}
	c.basketMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
