package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed at checkout",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	OrderRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_revenue_total",
		Help: "Sum of order totals placed, in currency units",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of the checkout transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Total number of checkouts rejected because stock ran out at commit time",
	})

	PickupCodeCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_code_collisions_total",
		Help: "Total number of pickup code or order number collisions retried",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions by target status",
	}, []string{"status"})

	OrderTransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations by operation and outcome",
	}, []string{"op", "outcome"})

	NotificationSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "order_notification_subscribers",
		Help: "Number of live order change subscribers",
	})

	NotificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifications_dropped_total",
		Help: "Total number of change notifications coalesced for slow subscribers",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
