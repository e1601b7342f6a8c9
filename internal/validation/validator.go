package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Publisher отправляет события брокеру
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// FlowValidator - проверка основных сценариев на работающем API
type FlowValidator struct {
	baseURL   string
	secret    string
	hallID    int64
	movieID   int64
	client    *http.Client
	publisher Publisher
}

// NewFlowValidator создает новый валидатор
func NewFlowValidator(baseURL, secret string, hallID, movieID int64, publisher Publisher) *FlowValidator {
	return &FlowValidator{
		baseURL:   baseURL,
		secret:    secret,
		hallID:    hallID,
		movieID:   movieID,
		client:    &http.Client{Timeout: 10 * time.Second},
		publisher: publisher,
	}
}

// ValidateAll проверяет сеансы, удержания и, при наличии брокера, бронирования
func (v *FlowValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Starting flow validation", "base_url", v.baseURL)

	showtimeID, err := v.validateShowtimes()
	if err != nil {
		return fmt.Errorf("showtime validation failed: %w", err)
	}

	seats, err := v.availableSeats(showtimeID, 2)
	if err != nil {
		return fmt.Errorf("availability validation failed: %w", err)
	}

	if err := v.validateHolds(showtimeID, seats); err != nil {
		return fmt.Errorf("hold validation failed: %w", err)
	}

	if v.publisher != nil {
		if err := v.validateReservations(ctx, showtimeID, seats); err != nil {
			return fmt.Errorf("reservation validation failed: %w", err)
		}
	}

	slog.Info("All flows validated")
	return nil
}

// validateShowtimes creates a showtime three days out, or reuses the one
// it conflicts with from an earlier run.
func (v *FlowValidator) validateShowtimes() (int64, error) {
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)

	var created models.Showtime
	var conflict struct {
		ID int64 `json:"conflicting_showtime_id"`
	}
	code, err := v.request(http.MethodPost, "/api/showtimes", "", models.CreateShowtimeRequest{
		HallID: v.hallID, MovieID: v.movieID, StartTime: start,
	}, func(code int) any {
		if code == http.StatusConflict {
			return &conflict
		}
		return &created
	})
	if err != nil {
		return 0, err
	}

	switch code {
	case http.StatusCreated:
		slog.Info("Showtime created", "showtime_id", created.ID)
		return created.ID, nil
	case http.StatusConflict:
		if conflict.ID == 0 {
			return 0, fmt.Errorf("POST /api/showtimes: conflict without conflicting_showtime_id")
		}
		slog.Info("Reusing conflicting showtime", "showtime_id", conflict.ID)
		return conflict.ID, nil
	default:
		return 0, fmt.Errorf("POST /api/showtimes: expected 201 or 409, got %d", code)
	}
}

func (v *FlowValidator) availableSeats(showtimeID int64, n int) ([]int64, error) {
	var view models.SeatAvailabilityView
	path := fmt.Sprintf("/api/showtimes/%d/seats", showtimeID)
	code, err := v.request(http.MethodGet, path, "", nil, func(int) any { return &view })
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("GET %s: expected 200, got %d", path, code)
	}

	var seats []int64
	for _, s := range view.Seats {
		if s.Status == models.SeatAvailable {
			seats = append(seats, s.SeatID)
			if len(seats) == n {
				return seats, nil
			}
		}
	}
	return nil, fmt.Errorf("GET %s: need %d available seats, found %d", path, n, len(seats))
}

func (v *FlowValidator) validateHolds(showtimeID int64, seats []int64) error {
	alice, err := v.token(900001)
	if err != nil {
		return err
	}
	bob, err := v.token(900002)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/showtimes/%d/holds", showtimeID)

	var held models.HoldSeatsResponse
	code, err := v.request(http.MethodPost, path, alice, models.HoldSeatsRequest{SeatIDs: seats}, func(int) any { return &held })
	if err != nil {
		return err
	}
	if code != http.StatusOK || len(held.Results) != len(seats) {
		return fmt.Errorf("POST %s: expected 200 with %d results, got %d", path, len(seats), code)
	}

	var contested models.HoldSeatsResponse
	code, err = v.request(http.MethodPost, path, bob, models.HoldSeatsRequest{SeatIDs: seats[:1]}, func(int) any { return &contested })
	if err != nil {
		return err
	}
	if code != http.StatusOK || len(contested.Results) != 1 || contested.Results[0].Outcome != "UNAVAILABLE" {
		return fmt.Errorf("POST %s: second holder must get UNAVAILABLE", path)
	}

	var mine models.MyHoldsResponse
	code, err = v.request(http.MethodGet, path+"/me", alice, nil, func(int) any { return &mine })
	if err != nil {
		return err
	}
	if code != http.StatusOK || len(mine.SeatIDs) != len(seats) || mine.ExpiresIn <= 0 {
		return fmt.Errorf("GET %s/me: unexpected holds %+v", path, mine)
	}

	code, err = v.request(http.MethodDelete, path, alice, models.HoldSeatsRequest{SeatIDs: seats}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("DELETE %s: expected 200, got %d", path, code)
	}

	slog.Info("Hold flow validated", "showtime_id", showtimeID)
	return nil
}

func (v *FlowValidator) validateReservations(ctx context.Context, showtimeID int64, seats []int64) error {
	err := v.publisher.Publish(ctx, models.QueueBookingConfirmed, models.BookingConfirmedEvent{
		BookingID: time.Now().Unix(), UserID: 900001, ShowtimeID: showtimeID, SeatIDs: seats,
	})
	if err != nil {
		return err
	}
	if err := v.waitForStatus(showtimeID, seats, models.SeatConfirmed); err != nil {
		return err
	}

	err = v.publisher.Publish(ctx, models.QueueRefundProcessed, models.RefundProcessedEvent{
		ShowtimeID: showtimeID, SeatIDs: seats,
	})
	if err != nil {
		return err
	}
	if err := v.waitForStatus(showtimeID, seats, models.SeatAvailable); err != nil {
		return err
	}

	slog.Info("Reservation flow validated", "showtime_id", showtimeID)
	return nil
}

func (v *FlowValidator) waitForStatus(showtimeID int64, seats []int64, status string) error {
	path := fmt.Sprintf("/api/showtimes/%d/seats", showtimeID)
	want := make(map[int64]bool, len(seats))
	for _, id := range seats {
		want[id] = true
	}

	for attempt := 0; attempt < 20; attempt++ {
		var view models.SeatAvailabilityView
		if _, err := v.request(http.MethodGet, path, "", nil, func(int) any { return &view }); err != nil {
			return err
		}
		matched := 0
		for _, s := range view.Seats {
			if want[s.SeatID] && s.Status == status {
				matched++
			}
		}
		if matched == len(seats) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("seats %v did not become %s", seats, status)
}

func (v *FlowValidator) token(userID int64) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(v.secret))
}

// request sends body as JSON and decodes the response into target(code)
// when it is non-nil.
func (v *FlowValidator) request(method, path, token string, body any, target func(code int) any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequest(method, v.baseURL+path, &buf)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if target != nil {
		if dst := target(resp.StatusCode); dst != nil {
			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return resp.StatusCode, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
			}
		}
	}
	return resp.StatusCode, nil
}

// RunValidation запускает проверку сценариев против запущенного API
func RunValidation(cfg *config.Config) {
	baseURL := os.Getenv("VALIDATOR_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	hallID, _ := strconv.ParseInt(os.Getenv("VALIDATOR_HALL_ID"), 10, 64)
	if hallID == 0 {
		hallID = 1
	}
	movieID, _ := strconv.ParseInt(os.Getenv("VALIDATOR_MOVIE_ID"), 10, 64)
	if movieID == 0 {
		movieID = 1
	}

	var publisher Publisher
	if os.Getenv("VALIDATOR_WITH_RABBITMQ") == "true" {
		publisher = messaging.NewRabbitClient(cfg.RabbitMQ)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	validator := NewFlowValidator(baseURL, cfg.Auth.JWTSecret, hallID, movieID, publisher)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
