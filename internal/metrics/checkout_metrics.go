package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики корзины и оформления заказов.
type CheckoutMetrics struct {
	ordersPlaced      prometheus.Counter
	checkoutFailed    *prometheus.CounterVec
	checkoutDuration  prometheus.Histogram
	activeCheckouts   prometheus.Gauge
	orderRevenue      prometheus.Counter
	cartMutations     *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	versionRetries    *prometheus.CounterVec
	timelineEvents    prometheus.Counter
	outboxEvents      prometheus.Counter
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном реестре (изолированные тесты).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of orders placed from carts",
		}),
		checkoutFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "Total number of failed checkouts by error kind",
		}, []string{"kind"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_checkouts",
			Help: "Number of checkouts currently in progress",
		}),
		orderRevenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_revenue_minor_total",
			Help: "Sum of placed order totals in minor currency units",
		}),
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		}, []string{"op"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Total number of order status changes",
		}, []string{"from", "to"}),
		versionRetries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_version_conflict_retries_total",
			Help: "Total number of optimistic locking retries by aggregate",
		}, []string{"aggregate"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

// RecordCheckoutStarted увеличивает количество активных оформлений.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished уменьшает количество активных оформлений и пишет длительность.
func (m *CheckoutMetrics) RecordCheckoutFinished(duration time.Duration) {
	m.activeCheckouts.Dec()
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordOrderPlaced учитывает созданный заказ.
func (m *CheckoutMetrics) RecordOrderPlaced(totalMinor int64) {
	m.ordersPlaced.Inc()
	if totalMinor > 0 {
		m.orderRevenue.Add(float64(totalMinor))
	}
}

func (m *CheckoutMetrics) RecordCheckoutFailed(kind string) {
	m.checkoutFailed.WithLabelValues(kind).Inc()
}

func (m *CheckoutMetrics) RecordCartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

func (m *CheckoutMetrics) RecordStatusTransition(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordVersionRetry учитывает повтор после конфликта версий (aggregate: cart или order).
func (m *CheckoutMetrics) RecordVersionRetry(aggregate string) {
	m.versionRetries.WithLabelValues(aggregate).Inc()
}

func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
