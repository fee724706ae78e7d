package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// upstreamConn wraps the single WebSocket connection to one debuggee
// page. Writes are serialized through a single writer goroutine fed
// by outbox, the "dedicated writer task" option from spec.md §9 —
// every client-read goroutine that wants to forward a re-encoded
// request shares this one outbox instead of calling WriteMessage
// directly, which would race across goroutines.
type upstreamConn struct {
	conn   *websocket.Conn
	outbox chan []byte
	closed chan struct{}
	once   sync.Once
}

var upstreamDialer = websocket.Dialer{
	HandshakeTimeout: 10 * time.Second,
}

// dialUpstream opens a new upstream socket at
// ws://chromeHost:chromePort<pathAndQuery>, matching spec.md §4.2's
// Attachment step 3.
func dialUpstream(ctx context.Context, chromeHost string, chromePort int, pathAndQuery string) (*upstreamConn, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", chromeHost, chromePort)}
	// pathAndQuery already starts with "/"; url.URL won't re-escape it
	// since we assign Opaque-free fields directly below.
	parsed, err := url.Parse(pathAndQuery)
	if err != nil {
		return nil, fmt.Errorf("broker: parsing dial path %q: %w", pathAndQuery, err)
	}
	u.Path = parsed.Path
	u.RawQuery = parsed.RawQuery

	dialCtx, cancel := context.WithTimeout(ctx, upstreamDialer.HandshakeTimeout)
	defer cancel()

	conn, _, err := upstreamDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamDial, u.String(), err)
	}

	uc := &upstreamConn{
		conn:   conn,
		outbox: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go uc.writeLoop()
	return uc, nil
}

func (u *upstreamConn) writeLoop() {
	for {
		select {
		case <-u.closed:
			return
		case msg := <-u.outbox:
			if err := u.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// send enqueues a frame for the writer goroutine. Returns false if the
// connection is already closed (caller should treat this the same as
// a closed upstream: detach and let the next attach redial).
func (u *upstreamConn) send(msg []byte) bool {
	select {
	case <-u.closed:
		return false
	default:
	}
	select {
	case u.outbox <- msg:
		return true
	case <-u.closed:
		return false
	}
}

// isClosed reports whether this upstream connection has been torn
// down. A closed upstreamConn is never reopened; a fresh one replaces
// it in the Broker on the next attach.
func (u *upstreamConn) isClosed() bool {
	select {
	case <-u.closed:
		return true
	default:
		return false
	}
}

// close is idempotent and safe to call concurrently with send/writeLoop:
// it closes u.closed (which both select on) rather than u.outbox, so a
// send racing this never hits a send-on-closed-channel panic.
func (u *upstreamConn) close() {
	u.once.Do(func() {
		close(u.closed)
		u.conn.Close()
	})
}

// upstreamLogger tags log lines with the [BROWSER pageid] component
// per spec.md §6.
func upstreamLogger(base zerolog.Logger, pageID string) zerolog.Logger {
	return base.With().Str("page_id", pageID).Logger()
}
