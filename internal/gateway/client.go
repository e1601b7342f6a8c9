package gateway

import (
	"sync"

	"seatkeeper/internal/models"
)

// client is one viewer with its own bounded queue and writer goroutine.
type client struct {
	userID int64
	conn   Conn
	send   chan models.GatewayMessage
	done   chan struct{}
	once   sync.Once

	// Room events are held back until the join snapshot is queued.
	mu      sync.Mutex
	ready   bool
	pending []models.GatewayMessage
}

func newClient(userID int64, conn Conn, queue int) *client {
	return &client{
		userID: userID,
		conn:   conn,
		send:   make(chan models.GatewayMessage, queue),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the queue is full.
func (c *client) enqueue(msg models.GatewayMessage) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// deliver queues a room event, or buffers it while the snapshot is being
// built. It reports false when the viewer cannot keep up.
func (c *client) deliver(msg models.GatewayMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return c.enqueue(msg)
	}
	if len(c.pending) >= cap(c.send) {
		return false
	}
	c.pending = append(c.pending, msg)
	return true
}

// start queues the first message followed by the buffered events, in the
// order they arrived.
func (c *client) start(first models.GatewayMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	ok := c.enqueue(first)
	for _, msg := range c.pending {
		if !ok {
			break
		}
		ok = c.enqueue(msg)
	}
	c.pending = nil
	return ok
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		}
	}
}

// close is safe to call from any goroutine; it also unblocks the reader.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
