// Package broker implements the per-page multiplexer: the hard
// engineering core of the proxy. One Broker owns the single upstream
// WebSocket to one debuggee page, the set of attached inspector
// clients, and the id-rewriting routing table between them.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adred-codev/devtoolsproxy/internal/idcodec"
	"github.com/adred-codev/devtoolsproxy/internal/jsonx"
)

// pollInterval and startupTimeout implement the lazy-upstream-startup
// wait from spec.md §4.2: poll every 100ms for up to 10s.
const (
	pollInterval   = 100 * time.Millisecond
	startupTimeout = 10 * time.Second
)

// Config carries the values every Broker needs that come from the
// proxy's runtime configuration, not from any one attach request.
type Config struct {
	ChromeHost   string
	ChromePort   int
	MaxClients   int
	QueueBackend bool
}

// Broker is one page's multiplexer. Create with newBroker (via
// Registry.GetOrCreate) rather than directly: construction spawns the
// upstream reader goroutine that must run for the broker's whole
// life.
type Broker struct {
	pageID string
	cfg    Config
	codec  *idcodec.Codec
	json   *jsonx.Codec
	logger zerolog.Logger

	mu           sync.Mutex
	upstream     *upstreamConn // nil until first dial
	clients      map[int]*client
	nextID       int    // monotonic, never reused — see SPEC_FULL.md §9, Open Question 1
	lastDialPath string // path+query of the most recent attach; recorded only, Attach dials with its own argument

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBroker(ctx context.Context, pageID string, codec *idcodec.Codec, json *jsonx.Codec, cfg Config, logger zerolog.Logger) *Broker {
	bctx, cancel := context.WithCancel(ctx)
	b := &Broker{
		pageID:  pageID,
		cfg:     cfg,
		codec:   codec,
		json:    json,
		logger:  upstreamLogger(logger, pageID),
		clients: make(map[int]*client),
		ctx:     bctx,
		cancel:  cancel,
	}
	b.wg.Add(1)
	go b.readUpstream()
	return b
}

// Attach registers a newly-upgraded client websocket with the broker,
// ensuring the upstream connection exists, and starts that client's
// read loop. pathAndQuery is the original request path+query used
// both to derive the page id (by the caller) and, here, to dial
// upstream if needed.
//
// Unlike the reference implementation, capacity and dial are checked
// *before* the client occupies a slot in the live set, so a failed
// attach never consumes an id — it only ever fails cleanly with no
// traffic exchanged, matching spec.md §4.2's observable contract.
func (b *Broker) Attach(conn *websocket.Conn, pathAndQuery string) error {
	b.mu.Lock()
	if len(b.clients) >= b.cfg.MaxClients || b.nextID >= b.codec.MaxClients() {
		b.mu.Unlock()
		b.logger.Warn().Msg("CONNECTION FAILED")
		return ErrCapacityExceeded
	}
	b.lastDialPath = pathAndQuery

	if b.upstream == nil || b.upstream.isClosed() {
		uc, err := dialUpstream(b.ctx, b.cfg.ChromeHost, b.cfg.ChromePort, pathAndQuery)
		if err != nil {
			b.mu.Unlock()
			b.logger.Error().Err(err).Msg("CONNECTION ERROR")
			return err
		}
		b.upstream = uc
	}

	id := b.nextID
	b.nextID++
	cl := newClient(id, b.pageID, conn, b.cfg.QueueBackend, b.logger.With().Int("client_id", id).Logger())
	b.clients[id] = cl
	b.mu.Unlock()

	cl.logger.Info().Msg("CONNECTED")

	go cl.sink.run(conn, cl.logger)
	go b.readClient(cl)
	return nil
}

// readClient implements Downstream → Upstream from spec.md §4.2:
// decode, re-encode the id, forward. Terminates (and detaches the
// client) on socket close, malformed JSON, or id overflow.
func (b *Broker) readClient(cl *client) {
	defer b.detach(cl)

	for {
		msgType, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		up := b.currentUpstream()
		if up == nil || up.isClosed() {
			cl.logger.Info().Msg("RECONNECTED")
			return
		}

		var frame map[string]any
		if err := b.json.Unmarshal(data, &frame); err != nil {
			cl.logger.Debug().Err(fmt.Errorf("%w: %v", ErrMalformedJSON, err)).Msg("malformed JSON from client")
			return
		}

		rawID, ok := frame["id"]
		if !ok {
			// Downstream messages always carry an id per the data
			// model; drop anything that doesn't.
			cl.logger.Debug().Err(ErrMalformedJSON).Msg("client frame missing id")
			return
		}
		requestID, ok := numberToInt(rawID)
		if !ok {
			cl.logger.Debug().Err(ErrMalformedJSON).Msg("client frame id not numeric")
			return
		}

		encoded, err := b.codec.Encode(cl.id, requestID)
		if err != nil {
			cl.logger.Debug().Err(fmt.Errorf("%w: %v", ErrIDOverflow, err)).Msg("id overflow, disconnecting client")
			return
		}
		frame["id"] = encoded

		out, err := b.json.Marshal(frame)
		if err != nil {
			cl.logger.Debug().Err(err).Msg("re-encoding client frame")
			return
		}

		if !up.send(out) {
			cl.logger.Info().Msg("RECONNECTED")
			return
		}
	}
}

// readUpstream implements Upstream → Downstream from spec.md §4.2. It
// is spawned once at broker creation and, per Open Question 2's
// resolution (SPEC_FULL.md §9), persists across upstream reconnects
// by re-reading the current upstream pointer on every outer
// iteration instead of closing over the first socket.
func (b *Broker) readUpstream() {
	defer b.wg.Done()

	first := true
	for {
		up, ok := b.waitForUpstream(first)
		first = false
		if !ok {
			b.logger.Info().Msg("DISCONNECTED")
			return
		}
		b.logger.Info().Msg("CONNECTED")
		b.pumpUpstream(up)

		if b.ctx.Err() != nil {
			return
		}
		// up closed (EOF/reset/protocol error): go back around and
		// wait for the next attach-driven redial. No backoff: purely
		// demand-driven per spec.md §4.2 Failure Policy.
	}
}

// waitForUpstream polls every 100ms for the upstream socket to exist
// and be open. The hard 10s timeout from spec.md §4.2 applies only to
// the very first wait at broker birth; later waits (after a prior
// upstream closed) poll until the broker's context is cancelled,
// since the broker's single reader is meant to persist for the life
// of the page per Open Question 2.
func (b *Broker) waitForUpstream(enforceTimeout bool) (*upstreamConn, bool) {
	var deadline <-chan time.Time
	if enforceTimeout {
		timer := time.NewTimer(startupTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if up := b.currentUpstream(); up != nil && !up.isClosed() {
			return up, true
		}
		select {
		case <-b.ctx.Done():
			return nil, false
		case <-deadline:
			return nil, false
		case <-ticker.C:
		}
	}
}

// pumpUpstream reads frames from up until it closes or errors. It
// always marks up closed on return (via defer), whether that happens
// because the socket died or because the broker is shutting down:
// otherwise up.isClosed() would keep reporting false, readUpstream
// would spin re-acquiring the same dead connection, and readClient
// would never see the close needed to trigger RECONNECTED/detach.
func (b *Broker) pumpUpstream(up *upstreamConn) {
	defer up.close()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		msgType, data, err := up.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		b.routeUpstreamFrame(data)
	}
}

// routeUpstreamFrame implements spec.md §4.2's event-vs-reply split.
func (b *Broker) routeUpstreamFrame(data []byte) {
	var frame map[string]any
	if err := b.json.Unmarshal(data, &frame); err != nil {
		b.logger.Warn().Err(fmt.Errorf("%w: %v", ErrMalformedJSON, err)).Msg("malformed JSON from upstream")
		return
	}

	rawID, hasID := frame["id"]
	if !hasID {
		b.broadcastEvent(data)
		return
	}

	encoded, ok := numberToInt(rawID)
	if !ok {
		b.logger.Warn().Err(ErrMalformedJSON).Msg("upstream reply id not numeric")
		return
	}
	clientID, requestID := b.codec.Decode(encoded)

	b.mu.Lock()
	cl := b.clients[clientID]
	b.mu.Unlock()
	if cl == nil {
		// No matching client: drop silently per spec.md §4.2.
		return
	}

	frame["id"] = requestID
	out, err := b.json.Marshal(frame)
	if err != nil {
		b.logger.Warn().Err(err).Msg("re-encoding upstream reply")
		return
	}
	cl.deliver(out)
}

// broadcastEvent forwards an upstream event verbatim (raw bytes, not
// re-serialized) to every live client of this page, per spec.md §8
// invariant 5.
func (b *Broker) broadcastEvent(raw []byte) {
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for _, cl := range b.clients {
		targets = append(targets, cl)
	}
	b.mu.Unlock()

	for _, cl := range targets {
		cl.deliver(raw)
	}
}

// detach removes a client from the live set and closes its socket. Its
// id is never reused (see nextID above).
func (b *Broker) detach(cl *client) {
	b.mu.Lock()
	delete(b.clients, cl.id)
	b.mu.Unlock()
	cl.close()
}

func (b *Broker) currentUpstream() *upstreamConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upstream
}

// Shutdown tears the broker down: cancels its context, closes every
// live client and the upstream socket, and waits for its reader
// goroutine to exit.
func (b *Broker) Shutdown() {
	b.cancel()

	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, cl := range b.clients {
		clients = append(clients, cl)
	}
	up := b.upstream
	b.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
	if up != nil {
		up.close()
	}

	b.wg.Wait()
}

// Snapshot returns a read-only view of the broker's live clients, for
// tests and introspection.
func (b *Broker) Snapshot() []ClientInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ClientInfo, 0, len(b.clients))
	for _, cl := range b.clients {
		out = append(out, ClientInfo{ID: cl.id, PageID: cl.pageID})
	}
	return out
}

// numberToInt extracts an integer from a decoded JSON value. Go's
// JSON decoder produces float64 for bare numbers when unmarshaling
// into any/map[string]any; CDP ids are always small non-negative
// integers, so the round trip through float64 is exact up to 2^53.
func numberToInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
