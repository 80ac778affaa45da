// Package metrics holds the prometheus collectors of the ordering API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakery_checkouts_total",
			Help: "Checkout attempts by pickup option and result kind",
		},
		[]string{"pickup_option", "result"},
	)

	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakery_orders_created_total",
			Help: "Orders created per pickup option",
		},
		[]string{"pickup_option"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakery_order_transitions_total",
			Help: "Order status transitions by target status and result kind",
		},
		[]string{"to", "result"},
	)

	LockerReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakery_locker_reservations_total",
			Help: "Locker reservation attempts by result kind",
		},
		[]string{"result"},
	)

	CredentialsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bakery_pickup_credentials_issued_total",
			Help: "Pickup credentials minted (repeat lookups excluded)",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakery_events_published_total",
			Help: "Events handed to the producer by topic",
		},
		[]string{"topic"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bakery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)
)

// Result renders an error as a low-cardinality label value.
func Result(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}
