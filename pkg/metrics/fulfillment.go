package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records order fulfillment outcomes.
type FulfillmentMetrics struct {
	duration *prometheus.HistogramVec
	orders   *prometheus.CounterVec
	items    prometheus.Counter
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewpos_order_duration_seconds",
		Help:    "Duration of order fulfillment transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brewpos_orders_total",
		Help: "Order fulfillment attempts by outcome code.",
	}, []string{"outcome"})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brewpos_order_items_total",
		Help: "Menu item units sold by committed orders.",
	})
	reg.MustRegister(duration, orders, items)
	return &FulfillmentMetrics{
		duration: duration,
		orders:   orders,
		items:    items,
	}
}

// Observe records one fulfillment attempt. An empty outcome means success.
func (m *FulfillmentMetrics) Observe(outcome string, duration time.Duration) {
	if m == nil || m.orders == nil {
		return
	}
	label := normalizeLabel(outcome, "ok")
	m.orders.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// AddItems counts units sold by a committed order.
func (m *FulfillmentMetrics) AddItems(units int) {
	if m == nil || m.items == nil || units <= 0 {
		return
	}
	m.items.Add(float64(units))
}

func normalizeLabel(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
