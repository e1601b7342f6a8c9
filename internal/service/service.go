package service

import (
	"seatkeeper/internal/cache"
	"seatkeeper/internal/config"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/repository"

	"github.com/jonboulle/clockwork"
)

type Services struct {
	Holds        *HoldService
	Expiry       *ExpiryReconciler
	Reservations *ReservationService
	Showtimes    *ShowtimeService
}

// Deps are the shared clients every service is built from.
type Deps struct {
	Repos  *repository.Repositories
	Store  *cache.HoldStore
	Events messaging.SeatEventPublisher
	Index  ShowtimeIndex
	Clock  clockwork.Clock
}

func NewServices(deps Deps, cfg *config.Config) *Services {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	catalog := NewSeatCatalog(deps.Store, deps.Repos.Showtimes, deps.Repos.Halls, cfg.Hold.CatalogTTL)
	holdService := NewHoldService(deps.Store, deps.Events, cfg.Hold).WithCatalog(catalog)
	expiry := NewExpiryReconciler(deps.Store, deps.Events)
	reservationService := NewReservationService(deps.Repos.Showtimes, deps.Repos.Reservations, deps.Repos.Halls, holdService, deps.Events)
	showtimeService := NewShowtimeService(deps.Repos.Showtimes, deps.Repos.Halls, deps.Repos.Movies, deps.Repos.Reservations, holdService, deps.Clock, cfg.Schedule)
	showtimeService.WithCatalog(catalog)
	if deps.Index != nil {
		showtimeService.WithIndex(deps.Index)
	}

	return &Services{
		Holds:        holdService,
		Expiry:       expiry,
		Reservations: reservationService,
		Showtimes:    showtimeService,
	}
}
