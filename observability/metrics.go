package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics bundles the Prometheus collectors recording pool engine
// activity: operation outcomes, vault/fee/supply gauges, and batch
// settlement counts.
type PoolMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	reserveHoldings prometheus.Gauge
	accumulatedFees prometheus.Gauge
	shareSupply     prometheus.Gauge
	queueLength     prometheus.Gauge
	exchangeRate    prometheus.Gauge

	batchSuccessful prometheus.Counter
	batchSkipped    prometheus.Counter
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// Pool returns the lazily-initialised pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "iptpool",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total pool engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "iptpool",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			reserveHoldings: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "iptpool",
				Subsystem: "pool",
				Name:      "reserve_holdings",
				Help:      "Current total_reserve_holdings, in raw R units.",
			}),
			accumulatedFees: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "iptpool",
				Subsystem: "pool",
				Name:      "accumulated_fees",
				Help:      "Current total_accumulated_fees, in raw R units.",
			}),
			shareSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "iptpool",
				Subsystem: "pool",
				Name:      "share_supply",
				Help:      "Current total_share_supply, in raw S units.",
			}),
			queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "iptpool",
				Subsystem: "pool",
				Name:      "queue_length",
				Help:      "Current number of entries in the pending withdrawal queue.",
			}),
			exchangeRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "iptpool",
				Subsystem: "pool",
				Name:      "exchange_rate",
				Help:      "Current exchange rate, stored as R_per_S * 1e6.",
			}),
			batchSuccessful: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "iptpool",
				Subsystem: "batch",
				Name:      "withdrawals_settled_total",
				Help:      "Total withdrawals settled across all batch_execute_withdraw calls.",
			}),
			batchSkipped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "iptpool",
				Subsystem: "batch",
				Name:      "withdrawals_skipped_total",
				Help:      "Total withdrawals skipped across all batch_execute_withdraw calls.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.reserveHoldings,
			poolRegistry.accumulatedFees,
			poolRegistry.shareSupply,
			poolRegistry.queueLength,
			poolRegistry.exchangeRate,
			poolRegistry.batchSuccessful,
			poolRegistry.batchSkipped,
		)
	})
	return poolRegistry
}

// Observe records the outcome of one engine operation call.
func (m *PoolMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetPoolState updates the vault/fee/supply/queue/rate gauges from the
// engine's current snapshot.
func (m *PoolMetrics) SetPoolState(reserveHoldings, accumulatedFees, shareSupply uint64, queueLength int, exchangeRate uint64) {
	if m == nil {
		return
	}
	m.reserveHoldings.Set(float64(reserveHoldings))
	m.accumulatedFees.Set(float64(accumulatedFees))
	m.shareSupply.Set(float64(shareSupply))
	m.queueLength.Set(float64(queueLength))
	m.exchangeRate.Set(float64(exchangeRate))
}

// RecordBatch increments the batch settlement counters by the given
// successful/skipped counts from a single batch_execute_withdraw call.
func (m *PoolMetrics) RecordBatch(successful, skipped int) {
	if m == nil {
		return
	}
	if successful > 0 {
		m.batchSuccessful.Add(float64(successful))
	}
	if skipped > 0 {
		m.batchSkipped.Add(float64(skipped))
	}
}
