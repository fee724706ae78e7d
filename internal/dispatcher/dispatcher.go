// Package dispatcher is the proxy's front door: it classifies each
// incoming HTTP request and routes it to a PageBroker attach, the
// status endpoint, or the transparent HTTP proxy, per spec.md §4.3.
package dispatcher

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adred-codev/devtoolsproxy/internal/broker"
)

// Dispatcher implements http.Handler. One Dispatcher is shared by
// every listener the Supervisor binds.
type Dispatcher struct {
	registry  *broker.Registry
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
	status    http.Handler
	httpProxy http.Handler
}

// New builds a Dispatcher. status and httpProxy are the handlers for
// GET /status.json and for everything that isn't a WebSocket upgrade,
// respectively.
func New(registry *broker.Registry, status, httpProxy http.Handler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:    logger,
		status:    status,
		httpProxy: httpProxy,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("HTTP")

	if r.Method == http.MethodGet && r.URL.Path == "/status.json" {
		d.status.ServeHTTP(w, r)
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		d.attach(w, r)
		return
	}

	d.httpProxy.ServeHTTP(w, r)
}

// attach upgrades the request and hands the resulting socket to the
// PageBroker for the page id derived from the request path, per
// spec.md §4.3's routing rule.
func (d *Dispatcher) attach(w http.ResponseWriter, r *http.Request) {
	pageID := pageIDFromPath(r.URL.RequestURI())

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn().Err(err).Str("page_id", pageID).Msg("client upgrade failed")
		return
	}

	b := d.registry.GetOrCreate(pageID)
	if err := b.Attach(conn, r.URL.RequestURI()); err != nil {
		conn.Close()
	}
}

// pageIDFromPath derives the page id as the last "/"-separated segment
// of the path, per spec.md §4.3.
func pageIDFromPath(pathAndQuery string) string {
	path := pathAndQuery
	if i := strings.IndexByte(path, '?'); i != -1 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i != -1 {
		return path[i+1:]
	}
	return path
}
