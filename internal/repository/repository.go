package repository

import (
	"seatkeeper/internal/database"
)

type Repositories struct {
	Showtimes    *ShowtimeRepository
	Reservations *ReservationRepository
	Halls        *HallRepository
	Movies       *MovieRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Showtimes:    NewShowtimeRepository(db),
		Reservations: NewReservationRepository(db),
		Halls:        NewHallRepository(db),
		Movies:       NewMovieRepository(db),
	}
}
