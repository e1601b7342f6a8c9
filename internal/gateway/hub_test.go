package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"seatkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan models.ClientMessage
	out    chan models.GatewayMessage
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan models.ClientMessage, 8),
		out:    make(chan models.GatewayMessage, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case msg := <-c.in:
		raw, _ := json.Marshal(msg)
		return json.Unmarshal(raw, v)
	case <-c.closed:
		return errors.New("closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.out <- v.(models.GatewayMessage)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) next(t *testing.T) models.GatewayMessage {
	t.Helper()
	select {
	case msg := <-c.out:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return models.GatewayMessage{}
	}
}

func (c *fakeConn) nothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.out:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeSource struct {
	mu        sync.Mutex
	feeds     map[int64]chan models.SeatEvent
	cancelled map[int64]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{feeds: map[int64]chan models.SeatEvent{}, cancelled: map[int64]int{}}
}

func (s *fakeSource) SubscribeRoom(ctx context.Context, showtimeID int64) (<-chan models.SeatEvent, error) {
	feed := make(chan models.SeatEvent, 8)
	out := make(chan models.SeatEvent)
	s.mu.Lock()
	s.feeds[showtimeID] = feed
	s.mu.Unlock()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cancelled[showtimeID]++
				s.mu.Unlock()
				return
			case ev := <-feed:
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			}
		}
	}()
	return out, nil
}

func (s *fakeSource) emit(showtimeID int64, ev models.SeatEvent) {
	s.mu.Lock()
	feed := s.feeds[showtimeID]
	s.mu.Unlock()
	feed <- ev
}

func (s *fakeSource) cancellations(showtimeID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[showtimeID]
}

type fakeIntents struct {
	mu      sync.Mutex
	intents []models.SeatIntent
}

func (f *fakeIntents) PublishIntent(_ context.Context, intent models.SeatIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return nil
}

func (f *fakeIntents) all() []models.SeatIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SeatIntent(nil), f.intents...)
}

type fakeSnapshots struct{}

func (fakeSnapshots) Availability(_ context.Context, showtimeID int64) (*models.SeatAvailabilityView, error) {
	return &models.SeatAvailabilityView{ShowtimeID: showtimeID, Seats: []models.SeatState{{SeatID: 1, Status: models.SeatAvailable}}}, nil
}

// blockingSnapshots holds Availability until release is closed.
type blockingSnapshots struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSnapshots) Availability(ctx context.Context, showtimeID int64) (*models.SeatAvailabilityView, error) {
	close(b.entered)
	<-b.release
	return fakeSnapshots{}.Availability(ctx, showtimeID)
}

func serve(t *testing.T, h *Hub, showtimeID, userID int64) (*fakeConn, chan error) {
	t.Helper()
	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background(), showtimeID, userID, conn) }()

	snap := conn.next(t)
	require.Equal(t, MessageSnapshot, snap.Type)
	require.Equal(t, showtimeID, snap.View.ShowtimeID)
	return conn, done
}

func TestBroadcastToRoom(t *testing.T) {
	source := newFakeSource()
	hub := NewHub(source, &fakeIntents{}, fakeSnapshots{})

	alice, _ := serve(t, hub, 10, 1)
	bob, _ := serve(t, hub, 10, 2)
	other, _ := serve(t, hub, 20, 3)
	assert.Equal(t, 2, hub.Rooms())
	assert.Equal(t, 2, hub.Viewers(10))

	source.emit(10, models.SeatEvent{Type: models.EventSeatHeld, ShowtimeID: 10, SeatIDs: []int64{4}, Status: models.SeatHeld, UserID: 1})

	for _, c := range []*fakeConn{alice, bob} {
		msg := c.next(t)
		assert.Equal(t, MessageEvent, msg.Type)
		assert.Equal(t, []int64{4}, msg.Event.SeatIDs)
		assert.Equal(t, models.SeatHeld, msg.Event.Status)
	}
	other.nothing(t)
}

func TestLimitReachedOnlyToOwner(t *testing.T) {
	source := newFakeSource()
	hub := NewHub(source, &fakeIntents{}, fakeSnapshots{})

	alice, _ := serve(t, hub, 10, 1)
	bob, _ := serve(t, hub, 10, 2)

	source.emit(10, models.SeatEvent{Type: models.EventSeatLimitReached, ShowtimeID: 10, SeatIDs: []int64{9}, UserID: 2, Limit: 8})

	msg := bob.next(t)
	assert.Equal(t, models.EventSeatLimitReached, msg.Event.Type)
	alice.nothing(t)
}

func TestEventsKeepStoreOrder(t *testing.T) {
	source := newFakeSource()
	hub := NewHub(source, &fakeIntents{}, fakeSnapshots{})
	viewer, _ := serve(t, hub, 10, 1)

	source.emit(10, models.SeatEvent{Type: models.EventSeatHeld, ShowtimeID: 10, SeatIDs: []int64{1}})
	source.emit(10, models.SeatEvent{Type: models.EventSeatReleased, ShowtimeID: 10, SeatIDs: []int64{1}})
	source.emit(10, models.SeatEvent{Type: models.EventSeatBooked, ShowtimeID: 10, SeatIDs: []int64{2}})

	assert.Equal(t, models.EventSeatHeld, viewer.next(t).Event.Type)
	assert.Equal(t, models.EventSeatReleased, viewer.next(t).Event.Type)
	assert.Equal(t, models.EventSeatBooked, viewer.next(t).Event.Type)
}

func TestLastViewerClosesRoom(t *testing.T) {
	source := newFakeSource()
	hub := NewHub(source, &fakeIntents{}, fakeSnapshots{})

	alice, aliceDone := serve(t, hub, 10, 1)
	bob, bobDone := serve(t, hub, 10, 2)

	require.NoError(t, alice.Close())
	require.NoError(t, <-aliceDone)
	assert.Equal(t, 1, hub.Viewers(10))
	assert.Zero(t, source.cancellations(10))

	require.NoError(t, bob.Close())
	require.NoError(t, <-bobDone)
	assert.Zero(t, hub.Rooms())
	assert.Eventually(t, func() bool { return source.cancellations(10) == 1 }, time.Second, 10*time.Millisecond)
}

func TestIntentsAreTaggedWithCaller(t *testing.T) {
	intents := &fakeIntents{}
	hub := NewHub(newFakeSource(), intents, fakeSnapshots{})

	viewer, _ := serve(t, hub, 10, 7)
	viewer.in <- models.ClientMessage{Action: models.IntentHold, SeatIDs: []int64{3, 4}}

	assert.Eventually(t, func() bool { return len(intents.all()) == 1 }, time.Second, 10*time.Millisecond)
	got := intents.all()[0]
	assert.Equal(t, models.SeatIntent{Action: models.IntentHold, UserID: 7, ShowtimeID: 10, SeatIDs: []int64{3, 4}}, got)

	viewer.in <- models.ClientMessage{Action: "grab", SeatIDs: []int64{3}}
	msg := viewer.next(t)
	assert.Equal(t, MessageError, msg.Type)
}

func TestAnonymousViewerCannotHold(t *testing.T) {
	intents := &fakeIntents{}
	hub := NewHub(newFakeSource(), intents, fakeSnapshots{})

	viewer, _ := serve(t, hub, 10, 0)
	viewer.in <- models.ClientMessage{Action: models.IntentHold, SeatIDs: []int64{1}}

	msg := viewer.next(t)
	assert.Equal(t, MessageError, msg.Type)
	assert.Empty(t, intents.all())
}

type stuckConn struct {
	*fakeConn
}

// WriteJSON never completes, so the viewer's queue fills up.
func (c *stuckConn) WriteJSON(any) error {
	<-c.closed
	return errors.New("closed")
}

func TestSlowViewerIsDisconnected(t *testing.T) {
	source := newFakeSource()
	hub := NewHub(source, &fakeIntents{}, fakeSnapshots{})
	hub.sendQueue = 2

	fast, _ := serve(t, hub, 10, 1)

	slow := &stuckConn{fakeConn: newFakeConn()}
	slowDone := make(chan error, 1)
	go func() { slowDone <- hub.Serve(context.Background(), 10, 2, slow) }()
	assert.Eventually(t, func() bool { return hub.Viewers(10) == 2 }, time.Second, 10*time.Millisecond)

	for i := int64(1); i <= 5; i++ {
		source.emit(10, models.SeatEvent{Type: models.EventSeatHeld, ShowtimeID: 10, SeatIDs: []int64{i}})
		assert.Equal(t, []int64{i}, fast.next(t).Event.SeatIDs)
	}

	select {
	case <-slowDone:
	case <-time.After(time.Second):
		t.Fatal("slow viewer was not disconnected")
	}
	assert.Equal(t, 1, hub.Viewers(10))
}

func TestEventsDuringSnapshotFollowIt(t *testing.T) {
	source := newFakeSource()
	snapshots := &blockingSnapshots{entered: make(chan struct{}), release: make(chan struct{})}
	hub := NewHub(source, &fakeIntents{}, snapshots)

	conn := newFakeConn()
	go func() { _ = hub.Serve(context.Background(), 10, 1, conn) }()

	select {
	case <-snapshots.entered:
	case <-time.After(time.Second):
		t.Fatal("snapshot was never requested")
	}

	source.emit(10, models.SeatEvent{Type: models.EventSeatHeld, ShowtimeID: 10, SeatIDs: []int64{1}, Status: models.SeatHeld})
	source.emit(10, models.SeatEvent{Type: models.EventSeatReleased, ShowtimeID: 10, SeatIDs: []int64{1}, Status: models.SeatAvailable})
	conn.nothing(t)

	close(snapshots.release)

	assert.Equal(t, MessageSnapshot, conn.next(t).Type)
	assert.Equal(t, models.EventSeatHeld, conn.next(t).Event.Type)
	assert.Equal(t, models.EventSeatReleased, conn.next(t).Event.Type)

	source.emit(10, models.SeatEvent{Type: models.EventSeatBooked, ShowtimeID: 10, SeatIDs: []int64{2}})
	assert.Equal(t, models.EventSeatBooked, conn.next(t).Event.Type)
	require.NoError(t, conn.Close())
}
