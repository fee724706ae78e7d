package broker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adred-codev/devtoolsproxy/internal/idcodec"
	"github.com/adred-codev/devtoolsproxy/internal/jsonx"
)

// Registry is the "Broker registry" named in spec.md §9's Design
// Notes: an explicit field owned by the Supervisor, passed by
// reference, replacing the reference implementation's bare
// process-global maps. One Registry serves every page on this proxy.
type Registry struct {
	ctx    context.Context
	cfg    Config
	codec  *idcodec.Codec
	json   *jsonx.Codec
	logger zerolog.Logger

	mu      sync.Mutex
	brokers map[string]*Broker
}

// NewRegistry builds a Registry. ctx is the root context every broker's
// own context derives from; cancelling it cancels them all. Shutdown
// does not cancel ctx: it shuts each broker down directly.
func NewRegistry(ctx context.Context, cfg Config, codec *idcodec.Codec, json *jsonx.Codec, logger zerolog.Logger) *Registry {
	return &Registry{
		ctx:     ctx,
		cfg:     cfg,
		codec:   codec,
		json:    json,
		logger:  logger,
		brokers: make(map[string]*Broker),
	}
}

// GetOrCreate returns the Broker for pageID, creating it (and
// spawning its upstream reader goroutine) on first contact, per
// spec.md §4.2's "created lazily on first client attachment"
// lifecycle.
func (r *Registry) GetOrCreate(pageID string) *Broker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.brokers[pageID]; ok {
		return b
	}
	b := newBroker(r.ctx, pageID, r.codec, r.json, r.cfg, r.logger)
	r.brokers[pageID] = b
	return b
}

// Shutdown tears down every broker the registry has ever created,
// per spec.md §4.6: close every live client socket, close every
// upstream socket, cancel background tasks.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	brokers := make([]*Broker, 0, len(r.brokers))
	for _, b := range r.brokers {
		brokers = append(brokers, b)
	}
	r.mu.Unlock()

	for _, b := range brokers {
		b.Shutdown()
	}
}

// PageIDs returns every page id the registry has created a broker
// for, for introspection.
func (r *Registry) PageIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.brokers))
	for id := range r.brokers {
		out = append(out, id)
	}
	return out
}
