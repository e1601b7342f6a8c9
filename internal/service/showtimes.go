package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seatkeeper/internal/config"
	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/models"
	"seatkeeper/internal/schedule"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

// ShowtimeStore persists showtimes.
type ShowtimeStore interface {
	ShowtimeReader
	Create(ctx context.Context, st *models.Showtime) error
	Update(ctx context.Context, st *models.Showtime) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	FindOverlapping(ctx context.Context, hallID int64, start, end time.Time, excludeID int64) ([]models.Showtime, error)
	List(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error)
	MarkFinished(ctx context.Context, now time.Time) (int64, error)
	OpenSales(ctx context.Context, now, until time.Time) (int64, error)
}

// MovieReader loads movies.
type MovieReader interface {
	GetByID(ctx context.Context, id int64) (*models.Movie, error)
}

// ReservationCounter reports how many seats of a showtime are confirmed.
type ReservationCounter interface {
	CountByShowtime(ctx context.Context, showtimeID int64) (int, error)
}

// HoldChecker reports whether a showtime has live holds.
type HoldChecker interface {
	HasHolds(ctx context.Context, showtimeID int64) (bool, error)
}

// ShowtimeIndex mirrors showtimes into a search index.
type ShowtimeIndex interface {
	IndexShowtime(ctx context.Context, st *models.Showtime) error
	DeleteShowtime(ctx context.Context, id int64) error
	Search(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error)
}

// Cancel results
const (
	CancelResultCancelled = "CANCELLED"
	CancelResultDeleted   = "DELETED"
)

// ShowtimeService schedules showtimes and keeps halls free of overlaps.
type ShowtimeService struct {
	showtimes    ShowtimeStore
	halls        HallReader
	movies       MovieReader
	reservations ReservationCounter
	holds        HoldChecker
	index        ShowtimeIndex
	catalog      *SeatCatalog
	clock        clockwork.Clock
	cfg          config.ScheduleConfig
	validate     *validator.Validate
}

func NewShowtimeService(showtimes ShowtimeStore, halls HallReader, movies MovieReader, reservations ReservationCounter, holds HoldChecker, clock clockwork.Clock, cfg config.ScheduleConfig) *ShowtimeService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = schedule.DefaultBuffer
	}
	return &ShowtimeService{
		showtimes:    showtimes,
		halls:        halls,
		movies:       movies,
		reservations: reservations,
		holds:        holds,
		clock:        clock,
		cfg:          cfg,
		validate:     validator.New(),
	}
}

// WithIndex enables search indexing. Index failures never fail a write.
func (s *ShowtimeService) WithIndex(index ShowtimeIndex) *ShowtimeService {
	s.index = index
	return s
}

// WithCatalog drops cached seat sets when a showtime changes.
func (s *ShowtimeService) WithCatalog(catalog *SeatCatalog) *ShowtimeService {
	s.catalog = catalog
	return s
}

// Create schedules a single showtime.
func (s *ShowtimeService) Create(ctx context.Context, req models.CreateShowtimeRequest) (*models.Showtime, error) {
	hall, movie, err := s.loadHallAndMovie(ctx, req.HallID, req.MovieID)
	if err != nil {
		return nil, err
	}

	st, err := s.prepare(ctx, hall, movie, req.StartTime, 0)
	if err != nil {
		return nil, err
	}
	if err := s.showtimes.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create showtime: %w", err)
	}

	metrics.ShowtimesCreated.Inc()
	s.indexShowtime(ctx, st)
	slog.Info("Showtime created",
		"showtime_id", st.ID, "hall_id", st.HallID, "movie_id", st.MovieID, "start", st.StartTime)
	return st, nil
}

// BatchCreate schedules days x slots. Slots closer than one showtime
// reject the whole batch; other problems skip single candidates.
func (s *ShowtimeService) BatchCreate(ctx context.Context, req models.BatchCreateRequest) (*models.BatchCreateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	hall, movie, err := s.loadHallAndMovie(ctx, req.HallID, req.MovieID)
	if err != nil {
		return nil, err
	}

	slots, err := schedule.CheckSlotGaps(req.TimeSlots, s.duration(movie))
	if err != nil {
		return nil, err
	}

	from, err := schedule.ParseDate(req.StartDate, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	until, err := schedule.ParseDate(req.EndDate, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	days, err := schedule.Days(from, until, req.Repeat, req.Weekdays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	resp := &models.BatchCreateResponse{
		Created: []models.Showtime{},
		Skipped: []models.SkippedShowtime{},
	}
	for _, day := range days {
		for _, slot := range slots {
			start := schedule.At(day, slot)

			st, err := s.prepare(ctx, hall, movie, start, 0)
			if err != nil {
				skip, ok := skipReason(start, err)
				if !ok {
					return nil, err
				}
				metrics.BatchSkipped.WithLabelValues(skip.Reason).Inc()
				resp.Skipped = append(resp.Skipped, skip)
				continue
			}

			if err := s.showtimes.Create(ctx, st); err != nil {
				return nil, fmt.Errorf("failed to create showtime at %s: %w", start.Format(time.RFC3339), err)
			}
			metrics.ShowtimesCreated.Inc()
			s.indexShowtime(ctx, st)
			resp.Created = append(resp.Created, *st)
		}
	}

	resp.CreatedCount = len(resp.Created)
	resp.SkippedCount = len(resp.Skipped)
	slog.Info("Batch showtimes created",
		"hall_id", req.HallID, "movie_id", req.MovieID,
		"created", resp.CreatedCount, "skipped", resp.SkippedCount)
	return resp, nil
}

// Update moves a showtime to another start time or hall.
func (s *ShowtimeService) Update(ctx context.Context, id int64, req models.UpdateShowtimeRequest) (*models.Showtime, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.ShowtimeCancelled || current.Status == models.ShowtimeFinished {
		return nil, fmt.Errorf("%w: showtime is %s", apperr.ErrInvalidState, current.Status)
	}

	hallID := current.HallID
	if req.HallID != nil && *req.HallID != current.HallID {
		if err := s.ensureNoSales(ctx, id); err != nil {
			return nil, err
		}
		hallID = *req.HallID
	}
	start := current.StartTime
	if req.StartTime != nil {
		start = *req.StartTime
	}

	hall, movie, err := s.loadHallAndMovie(ctx, hallID, current.MovieID)
	if err != nil {
		return nil, err
	}
	st, err := s.prepare(ctx, hall, movie, start, id)
	if err != nil {
		return nil, err
	}

	st.ID = current.ID
	st.Status = current.Status
	st.CreatedAt = current.CreatedAt
	if hallID == current.HallID {
		st.TotalSeats = current.TotalSeats
		st.AvailableSeats = current.AvailableSeats
	}
	if err := s.showtimes.Update(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to update showtime: %w", err)
	}

	s.indexShowtime(ctx, st)
	s.forgetSeats(ctx, id)
	slog.Info("Showtime updated", "showtime_id", id, "hall_id", st.HallID, "start", st.StartTime)
	return st, nil
}

// Cancel cancels a showtime with confirmed reservations and deletes one
// without. Showtimes with live holds cannot be cancelled.
func (s *ShowtimeService) Cancel(ctx context.Context, id int64) (string, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if st.Status == models.ShowtimeCancelled || st.Status == models.ShowtimeFinished {
		return "", fmt.Errorf("%w: showtime is %s", apperr.ErrInvalidState, st.Status)
	}

	held, err := s.holds.HasHolds(ctx, id)
	if err != nil {
		return "", err
	}
	if held {
		return "", apperr.ErrShowtimeHasHolds
	}

	reserved, err := s.reservations.CountByShowtime(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to count reservations: %w", err)
	}

	if reserved > 0 {
		if err := s.showtimes.UpdateStatus(ctx, id, models.ShowtimeCancelled); err != nil {
			return "", fmt.Errorf("failed to cancel showtime: %w", err)
		}
		st.Status = models.ShowtimeCancelled
		s.indexShowtime(ctx, st)
		s.forgetSeats(ctx, id)
		slog.Info("Showtime cancelled", "showtime_id", id, "reservations", reserved)
		return CancelResultCancelled, nil
	}

	if err := s.showtimes.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("failed to delete showtime: %w", err)
	}
	if s.index != nil {
		if err := s.index.DeleteShowtime(ctx, id); err != nil {
			slog.Warn("Failed to remove showtime from index", "showtime_id", id, "error", err)
		}
	}
	s.forgetSeats(ctx, id)
	slog.Info("Showtime deleted", "showtime_id", id)
	return CancelResultDeleted, nil
}

// Get returns a showtime or ErrNotFound.
func (s *ShowtimeService) Get(ctx context.Context, id int64) (*models.Showtime, error) {
	st, err := s.showtimes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("showtime %d: %w", id, apperr.ErrNotFound)
	}
	return st, nil
}

// Search lists showtimes, preferring the search index when one is set.
func (s *ShowtimeService) Search(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error) {
	if s.index != nil {
		result, err := s.index.Search(ctx, req)
		if err == nil {
			return result, nil
		}
		slog.Warn("Showtime search index failed, falling back to database", "error", err)
	}

	result, err := s.showtimes.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list showtimes: %w", err)
	}
	if result == nil {
		result = []models.Showtime{}
	}
	return result, nil
}

// RefreshStatuses finishes elapsed showtimes and opens sales for those
// starting within the sales window.
func (s *ShowtimeService) RefreshStatuses(ctx context.Context) (finished, selling int64, err error) {
	now := s.clock.Now()

	finished, err = s.showtimes.MarkFinished(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to finish showtimes: %w", err)
	}
	selling, err = s.showtimes.OpenSales(ctx, now, now.AddDate(0, 0, s.cfg.SalesOpenDays))
	if err != nil {
		return finished, 0, fmt.Errorf("failed to open sales: %w", err)
	}
	return finished, selling, nil
}

// prepare runs every per-showtime rule and returns the row to persist.
func (s *ShowtimeService) prepare(ctx context.Context, hall *models.Hall, movie *models.Movie, start time.Time, excludeID int64) (*models.Showtime, error) {
	if start.Before(s.clock.Now()) {
		return nil, apperr.ErrStartInPast
	}
	if !schedule.InReleaseWindow(start, movie.ReleaseStart, movie.ReleaseEnd, s.cfg.Location) {
		return nil, fmt.Errorf("%w: %s not in %s..%s", apperr.ErrOutsideReleaseWindow,
			start.Format(time.RFC3339), movie.ReleaseStart.Format("2006-01-02"), movie.ReleaseEnd.Format("2006-01-02"))
	}

	end := schedule.EndTime(start, movie.RuntimeMinutes, s.cfg.Buffer)
	overlapping, err := s.showtimes.FindOverlapping(ctx, hall.ID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check hall schedule: %w", err)
	}
	for _, other := range overlapping {
		if schedule.Overlaps(other.StartTime, other.EndTime, start, end) {
			return nil, &apperr.ConflictError{
				ConflictingShowtimeID: other.ID,
				Start:                 other.StartTime,
				End:                   other.EndTime,
			}
		}
	}

	return &models.Showtime{
		HallID:         hall.ID,
		MovieID:        movie.ID,
		StartTime:      start,
		EndTime:        end,
		Status:         models.ShowtimeScheduled,
		DayType:        schedule.DayType(start.In(s.cfg.Location)),
		TotalSeats:     hall.SeatCount,
		AvailableSeats: hall.SeatCount,
	}, nil
}

func (s *ShowtimeService) loadHallAndMovie(ctx context.Context, hallID, movieID int64) (*models.Hall, *models.Movie, error) {
	hall, err := s.halls.GetByID(ctx, hallID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get hall: %w", err)
	}
	if hall == nil {
		return nil, nil, fmt.Errorf("hall %d: %w", hallID, apperr.ErrNotFound)
	}
	if !hall.Active() {
		return nil, nil, apperr.ErrHallInactive
	}

	movie, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get movie: %w", err)
	}
	if movie == nil {
		return nil, nil, fmt.Errorf("movie %d: %w", movieID, apperr.ErrNotFound)
	}
	return hall, movie, nil
}

// ensureNoSales rejects hall changes once seats are reserved or held.
func (s *ShowtimeService) ensureNoSales(ctx context.Context, id int64) error {
	reserved, err := s.reservations.CountByShowtime(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count reservations: %w", err)
	}
	if reserved > 0 {
		return fmt.Errorf("%w: hall cannot change after seats were sold", apperr.ErrInvalidState)
	}
	held, err := s.holds.HasHolds(ctx, id)
	if err != nil {
		return err
	}
	if held {
		return apperr.ErrShowtimeHasHolds
	}
	return nil
}

func (s *ShowtimeService) duration(movie *models.Movie) time.Duration {
	return time.Duration(movie.RuntimeMinutes)*time.Minute + s.cfg.Buffer
}

func (s *ShowtimeService) forgetSeats(ctx context.Context, id int64) {
	if s.catalog != nil {
		s.catalog.Forget(ctx, id)
	}
}

func (s *ShowtimeService) indexShowtime(ctx context.Context, st *models.Showtime) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexShowtime(ctx, st); err != nil {
		slog.Warn("Failed to index showtime", "showtime_id", st.ID, "error", err)
	}
}

// skipReason maps a candidate rejection to a batch skip entry. Other
// errors abort the batch.
func skipReason(start time.Time, err error) (models.SkippedShowtime, bool) {
	skip := models.SkippedShowtime{StartTime: start}

	var conflict *apperr.ConflictError
	switch {
	case errors.As(err, &conflict):
		skip.Reason = models.SkipConflict
		skip.ConflictingShowtimeID = conflict.ConflictingShowtimeID
	case errors.Is(err, apperr.ErrOutsideReleaseWindow):
		skip.Reason = models.SkipReleaseWindow
	case errors.Is(err, apperr.ErrStartInPast):
		skip.Reason = models.SkipInPast
	default:
		return skip, false
	}
	return skip, true
}
