package service

import (
	"context"
	"testing"
	"time"

	"seatkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiresSessionAsOneEvent(t *testing.T) {
	store, mr := setupHoldStore(t)
	events := &recordingPublisher{}
	holds := NewHoldService(store, events, holdCfg)
	reconciler := NewExpiryReconciler(store, events)
	ctx := context.Background()

	_, err := holds.HoldSeats(ctx, 1, 10, []int64{1, 2, 3})
	require.NoError(t, err)
	_, err = holds.Hold(ctx, 2, 10, 9)
	require.NoError(t, err)

	n, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	mr.FastForward(holdCfg.TTL + time.Second)

	n, err = reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	expired := events.ofType(models.EventSeatExpired)
	require.Len(t, expired, 2)
	byUser := map[int64][]int64{}
	for _, ev := range expired {
		assert.Equal(t, models.ReasonExpired, ev.Reason)
		assert.Equal(t, models.SeatAvailable, ev.Status)
		byUser[ev.UserID] = ev.SeatIDs
	}
	assert.Equal(t, []int64{1, 2, 3}, byUser[1])
	assert.Equal(t, []int64{9}, byUser[2])

	active, err := store.ActiveShowtime(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestHandleExpiredKeyIgnoresOtherKeys(t *testing.T) {
	store, _ := setupHoldStore(t)
	events := &recordingPublisher{}
	holds := NewHoldService(store, events, holdCfg)
	reconciler := NewExpiryReconciler(store, events)
	ctx := context.Background()

	_, err := holds.Hold(ctx, 1, 10, 1)
	require.NoError(t, err)

	require.NoError(t, reconciler.HandleExpiredKey(ctx, "seat:hold:10:1"))
	require.NoError(t, reconciler.HandleExpiredKey(ctx, "unrelated"))
	assert.Empty(t, events.ofType(models.EventSeatExpired))

	require.NoError(t, reconciler.HandleExpiredKey(ctx, "seat:session:1:10"))
	expired := events.ofType(models.EventSeatExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, []int64{1}, expired[0].SeatIDs)

	// A second notification for the same session is a no-op.
	require.NoError(t, reconciler.HandleExpiredKey(ctx, "seat:session:1:10"))
	assert.Len(t, events.ofType(models.EventSeatExpired), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	store, _ := setupHoldStore(t)
	reconciler := NewExpiryReconciler(store, &recordingPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reconciler.Run(ctx, make(chan string))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
