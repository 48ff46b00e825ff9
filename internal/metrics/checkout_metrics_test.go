package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	metric := &dto.Metric{}
	if err := (<-ch).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.Counter != nil {
		return metric.Counter.GetValue()
	}
	return metric.Gauge.GetValue()
}

func TestCheckoutMetricsRecordOrderPlaced(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderPlaced(11123)
	m.RecordOrderPlaced(0)

	if got := counterValue(t, m.ordersPlaced); got != 2 {
		t.Fatalf("orders placed = %v, want 2", got)
	}
	if got := counterValue(t, m.orderRevenue); got != 11123 {
		t.Fatalf("revenue = %v, want 11123", got)
	}
}

func TestCheckoutMetricsActiveGauge(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCheckoutStarted()
	m.RecordCheckoutStarted()
	m.RecordCheckoutFinished(5 * time.Millisecond)

	if got := counterValue(t, m.activeCheckouts); got != 1 {
		t.Fatalf("active checkouts = %v, want 1", got)
	}
}

func TestCheckoutMetricsLabelledCounters(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCartMutation("add")
	m.RecordCartMutation("add")
	m.RecordStatusTransition("pending", "shipped")
	m.RecordVersionRetry("cart")
	m.RecordCheckoutFailed("validation")

	if got := counterValue(t, m.cartMutations.WithLabelValues("add")); got != 2 {
		t.Fatalf("cart add mutations = %v, want 2", got)
	}
	if got := counterValue(t, m.statusTransitions.WithLabelValues("pending", "shipped")); got != 1 {
		t.Fatalf("transitions = %v, want 1", got)
	}
	if got := counterValue(t, m.versionRetries.WithLabelValues("cart")); got != 1 {
		t.Fatalf("cart retries = %v, want 1", got)
	}
	if got := counterValue(t, m.checkoutFailed.WithLabelValues("validation")); got != 1 {
		t.Fatalf("failed = %v, want 1", got)
	}
}

func TestRegisterCounterReturnsExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "storefront_test_total", Help: "test"}

	first := registerCounter(reg, opts)
	second := registerCounter(reg, opts)
	first.Inc()

	if got := counterValue(t, second); got != 1 {
		t.Fatalf("second registration must reuse collector, got %v", got)
	}
}

func TestRegisterPanicsOnTypeClash(t *testing.T) {
	reg := prometheus.NewRegistry()
	registerGauge(reg, prometheus.GaugeOpts{Name: "storefront_clash", Help: "test"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for collector registered with another type")
		}
	}()
	registerCounterVec(reg, prometheus.CounterOpts{Name: "storefront_clash", Help: "test"}, nil)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("/api/cart", "GET", 200, 3*time.Millisecond)
	m.Observe("/api/cart", "GET", 200, time.Millisecond)

	if got := counterValue(t, m.requests.WithLabelValues("/api/cart", "GET", "200")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected 2 metric families, got %d", len(families))
	}
}
