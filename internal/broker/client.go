package broker

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// client is one attached inspector session. Its id is its attach
// ordinal within the owning Broker and is never recycled mid-life,
// per spec.md §4.2's Failure Policy ("its id is not recycled").
type client struct {
	id     int
	pageID string
	conn   *websocket.Conn
	sink   sink
	logger zerolog.Logger

	closeOnce sync.Once
}

func newClient(id int, pageID string, conn *websocket.Conn, queueBackend bool, logger zerolog.Logger) *client {
	return &client{
		id:     id,
		pageID: pageID,
		conn:   conn,
		sink:   newSink(queueBackend),
		logger: logger,
	}
}

// deliver queues msg for delivery to this client without blocking the
// caller (the upstream fan-out/routing loop).
func (c *client) deliver(msg []byte) {
	c.sink.push(msg)
}

// close tears the client down exactly once: stops its sink and closes
// its websocket. Safe to call from multiple goroutines (its own read
// loop on disconnect, and the broker on teardown).
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.sink.close()
		c.conn.Close()
	})
}

// ClientInfo is the read-only view of a live client exposed to
// callers outside the broker package (tests, introspection).
type ClientInfo struct {
	ID     int
	PageID string
}
