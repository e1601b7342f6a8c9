package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.SeatEvent
}

func (p *recordingPublisher) PublishSeatEvent(_ context.Context, ev models.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []models.SeatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.SeatEvent
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func setupHoldStore(t *testing.T) (*cache.HoldStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewHoldStoreFromClient(client), mr
}

type fakeShowtimes struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Showtime
}

func newFakeShowtimes(existing ...models.Showtime) *fakeShowtimes {
	f := &fakeShowtimes{nextID: 1000, rows: map[int64]*models.Showtime{}}
	for i := range existing {
		st := existing[i]
		f.rows[st.ID] = &st
	}
	return f
}

func (f *fakeShowtimes) GetByID(_ context.Context, id int64) (*models.Showtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (f *fakeShowtimes) Create(_ context.Context, st *models.Showtime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st.ID = f.nextID
	cp := *st
	f.rows[st.ID] = &cp
	return nil
}

func (f *fakeShowtimes) Update(_ context.Context, st *models.Showtime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *st
	f.rows[st.ID] = &cp
	return nil
}

func (f *fakeShowtimes) UpdateStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.rows[id]; ok {
		st.Status = status
	}
	return nil
}

func (f *fakeShowtimes) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeShowtimes) FindOverlapping(_ context.Context, hallID int64, start, end time.Time, excludeID int64) ([]models.Showtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Showtime
	for _, st := range f.rows {
		if st.HallID != hallID || st.ID == excludeID || st.Status == models.ShowtimeCancelled {
			continue
		}
		if st.StartTime.Before(end) && st.EndTime.After(start) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeShowtimes) List(_ context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Showtime
	for _, st := range f.rows {
		if req.HallID > 0 && st.HallID != req.HallID {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeShowtimes) MarkFinished(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, st := range f.rows {
		if (st.Status == models.ShowtimeScheduled || st.Status == models.ShowtimeSelling) && !st.EndTime.After(now) {
			st.Status = models.ShowtimeFinished
			n++
		}
	}
	return n, nil
}

func (f *fakeShowtimes) OpenSales(_ context.Context, now, until time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, st := range f.rows {
		if st.Status == models.ShowtimeScheduled && st.StartTime.After(now) && !st.StartTime.After(until) {
			st.Status = models.ShowtimeSelling
			n++
		}
	}
	return n, nil
}

type fakeHalls struct {
	halls map[int64]*models.Hall
	seats map[int64][]models.Seat
}

func (f *fakeHalls) GetByID(_ context.Context, id int64) (*models.Hall, error) {
	h, ok := f.halls[id]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHalls) Seats(_ context.Context, hallID int64) ([]models.Seat, error) {
	return f.seats[hallID], nil
}

type fakeMovies map[int64]*models.Movie

func (f fakeMovies) GetByID(_ context.Context, id int64) (*models.Movie, error) {
	m, ok := f[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// fakeReservations mimics the confirmed-reservation table including the
// availableSeats bookkeeping on the showtime row.
type fakeReservations struct {
	mu        sync.Mutex
	showtimes *fakeShowtimes
	rows      map[int64]map[int64]int64 // showtime -> seat -> booking
}

func newFakeReservations(showtimes *fakeShowtimes) *fakeReservations {
	return &fakeReservations{showtimes: showtimes, rows: map[int64]map[int64]int64{}}
}

func (f *fakeReservations) Confirm(_ context.Context, showtimeID, bookingID, _ int64, seatIDs []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[showtimeID] == nil {
		f.rows[showtimeID] = map[int64]int64{}
	}
	var inserted []int64
	for _, id := range seatIDs {
		if _, ok := f.rows[showtimeID][id]; ok {
			continue
		}
		f.rows[showtimeID][id] = bookingID
		inserted = append(inserted, id)
	}
	f.adjust(showtimeID, -len(inserted))
	return inserted, nil
}

func (f *fakeReservations) Remove(_ context.Context, showtimeID int64, seatIDs []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []int64
	for _, id := range seatIDs {
		if _, ok := f.rows[showtimeID][id]; ok {
			delete(f.rows[showtimeID], id)
			removed = append(removed, id)
		}
	}
	f.adjust(showtimeID, len(removed))
	return removed, nil
}

func (f *fakeReservations) ConfirmedSeats(_ context.Context, showtimeID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.rows[showtimeID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeReservations) CountByShowtime(_ context.Context, showtimeID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[showtimeID]), nil
}

func (f *fakeReservations) adjust(showtimeID int64, delta int) {
	f.showtimes.mu.Lock()
	defer f.showtimes.mu.Unlock()
	if st, ok := f.showtimes.rows[showtimeID]; ok {
		st.AvailableSeats += delta
	}
}

type fakeHoldChecker map[int64]bool

func (f fakeHoldChecker) HasHolds(_ context.Context, showtimeID int64) (bool, error) {
	return f[showtimeID], nil
}
