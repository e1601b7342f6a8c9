// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HoldsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seatkeeper",
		Name:      "holds_total",
		Help:      "Seat hold attempts by outcome.",
	}, []string{"outcome"})

	ReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seatkeeper",
		Name:      "releases_total",
		Help:      "Seats released by reason.",
	}, []string{"reason"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seatkeeper",
		Name:      "reservations_total",
		Help:      "Seat reservations created or removed.",
	}, []string{"op"})

	GatewayRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "seatkeeper",
		Name:      "gateway_rooms",
		Help:      "Showtime rooms with at least one viewer.",
	})

	GatewayViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "seatkeeper",
		Name:      "gateway_viewers",
		Help:      "Connected websocket viewers.",
	})

	ShowtimesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatkeeper",
		Name:      "showtimes_created_total",
		Help:      "Showtimes persisted by the scheduler.",
	})

	BatchSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seatkeeper",
		Name:      "batch_skipped_total",
		Help:      "Batch showtime candidates skipped by reason.",
	}, []string{"reason"})
)
