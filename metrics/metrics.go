// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the engine updates. A single instance
// is shared by the service layer and registered once at startup.
type Metrics struct {
	OrdersSubmitted *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	TradesExecuted  prometheus.Counter
	TradedVolume    prometheus.Counter

	SubmitLatency prometheus.Histogram
	CancelLatency prometheus.Histogram

	BestBid      prometheus.Gauge
	BestAsk      prometheus.Gauge
	BookDepth    *prometheus.GaugeVec
	OpenOrders   prometheus.Gauge
	PendingStops prometheus.Gauge
}

// New registers all collectors with reg and returns them. Pass
// prometheus.DefaultRegisterer outside tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidar",
			Name:      "orders_submitted_total",
			Help:      "Orders accepted by the engine, by type.",
		}, []string{"type"}),
		OrdersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidar",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected by validation or policy, by reason.",
		}, []string{"reason"}),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vidar",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled, including IOC/market remainders.",
		}),
		TradesExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vidar",
			Name:      "trades_total",
			Help:      "Fills produced by the matching engine.",
		}),
		TradedVolume: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vidar",
			Name:      "traded_volume_total",
			Help:      "Total filled quantity in lots.",
		}),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidar",
			Name:      "submit_latency_seconds",
			Help:      "End-to-end latency of order submission.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		CancelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidar",
			Name:      "cancel_latency_seconds",
			Help:      "End-to-end latency of order cancellation.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		BestBid: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidar",
			Name:      "best_bid_ticks",
			Help:      "Best bid price in ticks, 0 when the side is empty.",
		}),
		BestAsk: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidar",
			Name:      "best_ask_ticks",
			Help:      "Best ask price in ticks, 0 when the side is empty.",
		}),
		BookDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vidar",
			Name:      "book_depth_levels",
			Help:      "Occupied price levels per side.",
		}, []string{"side"}),
		OpenOrders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidar",
			Name:      "open_orders",
			Help:      "Resting orders currently on the book.",
		}),
		PendingStops: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidar",
			Name:      "pending_stops",
			Help:      "Stop orders parked awaiting their trigger.",
		}),
	}
}
