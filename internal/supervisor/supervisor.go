// Package supervisor owns the proxy's listener lifecycle: binding one
// listener per (proxy_host, proxy_port) pair at startup and draining
// them all on shutdown, per spec.md §4.6. Grounded on the teacher's
// Server.Start/Shutdown in internal/shared/server.go.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/devtoolsproxy/internal/broker"
)

// drainGrace bounds how long Shutdown waits for in-flight HTTP
// requests (not WebSocket sessions, which the broker registry closes
// directly) to finish before forcing listeners closed.
const drainGrace = 10 * time.Second

// Supervisor binds a handler across every configured proxy host/port
// pair and tears the whole set down together on shutdown.
type Supervisor struct {
	logger   zerolog.Logger
	registry *broker.Registry

	mu      sync.Mutex
	servers []*http.Server
	wg      sync.WaitGroup
}

// New builds a Supervisor. registry is shut down alongside the
// listeners so every live client and upstream socket closes too.
func New(registry *broker.Registry, logger zerolog.Logger) *Supervisor {
	return &Supervisor{logger: logger, registry: registry}
}

// Start binds one listener per (host, port) pair — every host on
// every port, per spec.md §4.6 — and serves handler on each in its own
// goroutine. It returns once every listener is bound; bind failures
// on any pair abort the whole startup and close whatever was already
// bound.
func (s *Supervisor) Start(hosts []string, ports []int, handler http.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, host := range hosts {
		for _, port := range ports {
			addr := fmt.Sprintf("%s:%d", host, port)
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				s.closeAllLocked()
				return fmt.Errorf("supervisor: binding %s: %w", addr, err)
			}

			srv := &http.Server{Handler: handler}
			s.servers = append(s.servers, srv)
			s.logger.Info().Str("addr", addr).Msg("listening")

			s.wg.Add(1)
			go func(srv *http.Server, ln net.Listener, addr string) {
				defer s.wg.Done()
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					s.logger.Error().Err(err).Str("addr", addr).Msg("accept loop error")
				}
			}(srv, ln, addr)
		}
	}
	return nil
}

func (s *Supervisor) closeAllLocked() {
	for _, srv := range s.servers {
		srv.Close()
	}
	s.servers = nil
}

// Shutdown drains every listener, tears down every broker (closing
// every live client and upstream socket), and waits for the accept
// loops to exit. It blocks for at most drainGrace before forcing
// remaining HTTP connections closed.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.logger.Info().Msg("shutting down")

	s.mu.Lock()
	servers := s.servers
	s.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(ctx, drainGrace)
	defer cancel()

	var drainWg sync.WaitGroup
	for _, srv := range servers {
		drainWg.Add(1)
		go func(srv *http.Server) {
			defer drainWg.Done()
			if err := srv.Shutdown(drainCtx); err != nil {
				srv.Close()
			}
		}(srv)
	}
	drainWg.Wait()

	s.registry.Shutdown()
	s.wg.Wait()
}
