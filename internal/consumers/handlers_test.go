package consumers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReservations struct {
	confirmed []models.BookingConfirmedEvent
	refunded  []models.RefundProcessedEvent
	err       error
}

func (f *fakeReservations) CreateSeatReservations(_ context.Context, ev models.BookingConfirmedEvent) error {
	f.confirmed = append(f.confirmed, ev)
	return f.err
}

func (f *fakeReservations) ReleaseSeatReservations(_ context.Context, ev models.RefundProcessedEvent) ([]int64, error) {
	f.refunded = append(f.refunded, ev)
	return ev.SeatIDs, f.err
}

type fakeIntents struct {
	mu   sync.Mutex
	seen []models.SeatIntent
}

func (f *fakeIntents) HandleIntent(_ context.Context, intent models.SeatIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, intent)
	if intent.Action != models.IntentHold {
		return apperr.ErrInvalidInput
	}
	return nil
}

func (f *fakeIntents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func TestHandleBookingConfirmed(t *testing.T) {
	res := &fakeReservations{}
	h := NewHandlers(res, &fakeIntents{})

	body := []byte(`{"booking_id":7,"user_id":42,"showtime_id":10,"seat_ids":[1,2]}`)
	require.NoError(t, h.HandleBookingConfirmed(context.Background(), body))

	require.Len(t, res.confirmed, 1)
	assert.Equal(t, int64(42), res.confirmed[0].UserID)
	assert.Equal(t, []int64{1, 2}, res.confirmed[0].SeatIDs)
}

func TestHandleBookingConfirmedMalformedIsPermanent(t *testing.T) {
	res := &fakeReservations{}
	h := NewHandlers(res, &fakeIntents{})

	err := h.HandleBookingConfirmed(context.Background(), []byte(`{"seat_ids":"nope"`))
	require.Error(t, err)
	assert.True(t, Permanent(err))
	assert.Empty(t, res.confirmed)
}

func TestHandleRefundProcessed(t *testing.T) {
	res := &fakeReservations{}
	h := NewHandlers(res, &fakeIntents{})

	body := []byte(`{"showtime_id":10,"seat_ids":[3]}`)
	require.NoError(t, h.HandleRefundProcessed(context.Background(), body))
	require.Len(t, res.refunded, 1)
	assert.Equal(t, int64(10), res.refunded[0].ShowtimeID)

	res.err = errors.New("db down")
	err := h.HandleRefundProcessed(context.Background(), body)
	require.Error(t, err)
	assert.False(t, Permanent(err))
}

func TestPermanent(t *testing.T) {
	assert.True(t, Permanent(fmt.Errorf("wrap: %w", apperr.ErrNotFound)))
	assert.True(t, Permanent(apperr.ErrInvalidInput))
	assert.False(t, Permanent(apperr.ErrStoreUnavailable))
	assert.False(t, Permanent(errors.New("timeout")))
}

func TestRunIntentsKeepsGoingAfterFailures(t *testing.T) {
	intents := &fakeIntents{}
	h := NewHandlers(&fakeReservations{}, intents)

	stream := make(chan models.SeatIntent, 3)
	stream <- models.SeatIntent{Action: "bogus", UserID: 1, ShowtimeID: 10}
	stream <- models.SeatIntent{Action: models.IntentHold, UserID: 1, ShowtimeID: 10, SeatIDs: []int64{1}}
	close(stream)

	done := make(chan struct{})
	go func() {
		h.RunIntents(context.Background(), stream)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("intent worker did not stop when the stream closed")
	}
	assert.Equal(t, 2, intents.count())
}

func TestRunIntentsStopsOnCancel(t *testing.T) {
	h := NewHandlers(&fakeReservations{}, &fakeIntents{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.RunIntents(ctx, make(chan models.SeatIntent))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("intent worker ignored cancellation")
	}
}
