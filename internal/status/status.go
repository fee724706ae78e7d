// Package status implements spec.md §4.5's StatusEndpoint: a
// read-only JSON snapshot of the runtime configuration at
// GET /status.json.
package status

import (
	"encoding/json"
	"net/http"

	"github.com/adred-codev/devtoolsproxy/internal/config"
)

// document is the exact field set spec.md §4.5 names, no more and no
// less.
type document struct {
	ChromeHost string   `json:"chrome_host"`
	ChromePort int      `json:"chrome_port"`
	Debug      bool     `json:"debug"`
	Features   features `json:"features"`
	MaxClients int      `json:"max_clients"`
	ProxyHosts []string `json:"proxy_hosts"`
	ProxyPorts []int    `json:"proxy_ports"`
}

type features struct {
	JSONExperimental bool `json:"json_experimental"`
	QueueBackend     bool `json:"queue_backend"`
}

// Handler serves the fixed configuration snapshot; it never mutates
// cfg and never reflects live broker state.
type Handler struct {
	doc document
}

// New captures cfg's current values at construction time. Config is
// fixed at startup, so one snapshot is valid for the proxy's whole
// life.
func New(cfg *config.Config) *Handler {
	return &Handler{doc: document{
		ChromeHost: cfg.ChromeHost,
		ChromePort: cfg.ChromePort,
		Debug:      cfg.Debug,
		Features: features{
			JSONExperimental: cfg.Features.JSONExperimental,
			QueueBackend:     cfg.Features.QueueBackend,
		},
		MaxClients: cfg.MaxClients,
		ProxyHosts: cfg.ProxyHosts,
		ProxyPorts: cfg.ProxyPorts,
	}}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.doc)
}
