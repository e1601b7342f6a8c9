package models

import "time"

// Repeat policies for batch showtime creation
const (
	RepeatDaily          = "DAILY"
	RepeatWeekly         = "WEEKLY"
	RepeatCustomWeekdays = "CUSTOM_WEEKDAYS"
)

// Skip reasons reported by batch creation
const (
	SkipConflict      = "CONFLICT"
	SkipReleaseWindow = "OUTSIDE_RELEASE_WINDOW"
	SkipInPast        = "IN_PAST"
)

// CreateShowtimeRequest - модель для создания сеанса
type CreateShowtimeRequest struct {
	HallID    int64     `json:"hall_id" binding:"required"`
	MovieID   int64     `json:"movie_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
}

// UpdateShowtimeRequest - модель для изменения сеанса
type UpdateShowtimeRequest struct {
	HallID    *int64     `json:"hall_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// BatchCreateRequest - модель для пакетного создания сеансов
type BatchCreateRequest struct {
	HallID    int64    `json:"hall_id" validate:"required,gt=0"`
	MovieID   int64    `json:"movie_id" validate:"required,gt=0"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Repeat    string   `json:"repeat" validate:"required,oneof=DAILY WEEKLY CUSTOM_WEEKDAYS"`
	Weekdays  []int    `json:"weekdays,omitempty" validate:"required_if=Repeat CUSTOM_WEEKDAYS,dive,min=0,max=6"`
	TimeSlots []string `json:"time_slots" validate:"required,min=1,dive,datetime=15:04"`
}

// SkippedShowtime describes a batch candidate that was not created
type SkippedShowtime struct {
	StartTime             time.Time `json:"start_time"`
	Reason                string    `json:"reason"`
	ConflictingShowtimeID int64     `json:"conflicting_showtime_id,omitempty"`
}

// BatchCreateResponse - итог пакетного создания
type BatchCreateResponse struct {
	CreatedCount int               `json:"created_count"`
	SkippedCount int               `json:"skipped_count"`
	Created      []Showtime        `json:"created"`
	Skipped      []SkippedShowtime `json:"skipped"`
}

// SearchShowtimesRequest - фильтры поиска сеансов
type SearchShowtimesRequest struct {
	MovieID  int64
	HallID   int64
	Date     string
	Status   string
	Page     int
	PageSize int
}

// HoldSeatsRequest - модель для удержания или освобождения мест
type HoldSeatsRequest struct {
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1"`
}

// HoldOutcomeItem - результат удержания одного места
type HoldOutcomeItem struct {
	SeatID  int64  `json:"seat_id"`
	Outcome string `json:"outcome"`
}

// HoldSeatsResponse - ответ на запрос удержания
type HoldSeatsResponse struct {
	Results   []HoldOutcomeItem `json:"results"`
	ExpiresIn int64             `json:"expires_in_sec"`
}

// MyHoldsResponse - места, удерживаемые текущим пользователем
type MyHoldsResponse struct {
	ShowtimeID int64   `json:"showtime_id"`
	SeatIDs    []int64 `json:"seat_ids"`
	ExpiresIn  int64   `json:"expires_in_sec"`
}

// HeldSeat - удерживаемое место и его владелец
type HeldSeat struct {
	SeatID int64 `json:"seat_id"`
	UserID int64 `json:"user_id"`
}

// SeatState - место в представлении доступности
type SeatState struct {
	SeatID int64  `json:"seat_id"`
	Row    int    `json:"row"`
	Number int    `json:"number"`
	Status string `json:"status"`
	HeldBy int64  `json:"held_by,omitempty"`
}

// SeatAvailabilityView - состояние всех мест сеанса
type SeatAvailabilityView struct {
	ShowtimeID int64       `json:"showtime_id"`
	Seats      []SeatState `json:"seats"`
}

// GatewayMessage is what viewers receive over the websocket
type GatewayMessage struct {
	Type  string                `json:"type"`
	Event *SeatEvent            `json:"event,omitempty"`
	View  *SeatAvailabilityView `json:"view,omitempty"`
	Error string                `json:"error,omitempty"`
}

// ClientMessage is what viewers send over the websocket
type ClientMessage struct {
	Action  string  `json:"action"`
	SeatIDs []int64 `json:"seat_ids"`
}
