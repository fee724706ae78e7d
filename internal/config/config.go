// Package config parses the proxy's CLI flags and the two
// environment-variable feature flags, and validates the result.
// Grounded on the teacher's config.go LoadConfig/Validate/Print shape
// and main.go's repeatable-flag splitBrokers helper.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the fully-resolved runtime configuration: everything
// StatusEndpoint reports, everything the other components need to do
// their jobs.
type Config struct {
	ProxyHosts []string
	ProxyPorts []int

	ChromeHost string
	ChromePort int

	MaxClients int
	Debug      bool

	Features FeatureFlags
}

// FeatureFlags are the two optional, performance-only environment
// toggles named in spec.md §6. Case-insensitive "true" enables them,
// matching the reference implementation's os.environ.get(...).lower().
// Read as raw strings (not env's bool parsing, which accepts a wider
// set of truthy spellings than the spec calls for) and normalized by
// resolveFeatureFlags.
type FeatureFlags struct {
	JSONExperimental bool
	QueueBackend     bool
}

type rawFeatureFlags struct {
	JSONExperimental string `env:"DTP_JSON_EXPERIMENTAL" envDefault:""`
	QueueBackend     string `env:"DTP_QUEUE_BACKEND" envDefault:""`
}

func resolveFeatureFlags() (FeatureFlags, error) {
	var raw rawFeatureFlags
	if err := env.Parse(&raw); err != nil {
		return FeatureFlags{}, err
	}
	return FeatureFlags{
		JSONExperimental: strings.EqualFold(raw.JSONExperimental, "true"),
		QueueBackend:     strings.EqualFold(raw.QueueBackend, "true"),
	}, nil
}

// multiHost and multiPort implement flag.Value so --host and --port
// can be repeated on the command line, the same shape as the
// reference implementation's argparse(nargs='*').
type multiHost []string

func (m *multiHost) String() string { return strings.Join(*m, ",") }
func (m *multiHost) Set(v string) error {
	*m = append(*m, v)
	return nil
}

type multiPort []int

func (m *multiPort) String() string {
	parts := make([]string, len(*m))
	for i, p := range *m {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ",")
}

func (m *multiPort) Set(v string) error {
	var p int
	if _, err := fmt.Sscanf(v, "%d", &p); err != nil {
		return fmt.Errorf("invalid port %q: %w", v, err)
	}
	*m = append(*m, p)
	return nil
}

// Parse builds a Config from CLI args and the process environment.
// args should be os.Args[1:].
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("devtoolsproxy", flag.ContinueOnError)

	var hosts multiHost
	var ports multiPort
	fs.Var(&hosts, "host", "proxy bind address (repeatable, default 127.0.0.1)")
	fs.Var(&ports, "port", "proxy bind port (repeatable, default 9222)")
	chromeHost := fs.String("chrome-host", "127.0.0.1", "upstream browser host")
	chromePort := fs.Int("chrome-port", 12222, "upstream browser port")
	maxClients := fs.Int("max-clients", 2, "max concurrent clients per page")
	debug := fs.Bool("debug", false, "enable verbose diagnostics")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if len(hosts) == 0 {
		hosts = multiHost{"127.0.0.1"}
	}
	if len(ports) == 0 {
		ports = multiPort{9222}
	}

	features, err := resolveFeatureFlags()
	if err != nil {
		return nil, fmt.Errorf("config: parsing environment feature flags: %w", err)
	}

	cfg := &Config{
		ProxyHosts: []string(hosts),
		ProxyPorts: dedupPorts(ports),
		ChromeHost: *chromeHost,
		ChromePort: *chromePort,
		MaxClients: *maxClients,
		Debug:      *debug,
		Features:   features,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// dedupPorts removes duplicate ports while preserving first-seen
// order, matching the reference implementation's list(set(args.port)).
func dedupPorts(ports []int) []int {
	seen := make(map[int]bool, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Validate checks the resolved configuration for errors a human
// would catch at boot rather than let surface mid-run.
func (c *Config) Validate() error {
	if len(c.ProxyHosts) == 0 {
		return fmt.Errorf("at least one --host is required")
	}
	if len(c.ProxyPorts) == 0 {
		return fmt.Errorf("at least one --port is required")
	}
	if c.ChromeHost == "" {
		return fmt.Errorf("--chrome-host must not be empty")
	}
	if c.ChromePort <= 0 || c.ChromePort > 65535 {
		return fmt.Errorf("--chrome-port must be 1-65535, got %d", c.ChromePort)
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("--max-clients must be >= 1, got %d", c.MaxClients)
	}
	return nil
}

// Print logs a human-readable summary at startup, the same shape as
// the teacher's Config.Print().
func (c *Config) Print() {
	fmt.Fprintln(os.Stdout, "=== DevTools Proxy Configuration ===")
	fmt.Fprintf(os.Stdout, "Proxy hosts:   %v\n", c.ProxyHosts)
	fmt.Fprintf(os.Stdout, "Proxy ports:   %v\n", c.ProxyPorts)
	fmt.Fprintf(os.Stdout, "Chrome:        %s:%d\n", c.ChromeHost, c.ChromePort)
	fmt.Fprintf(os.Stdout, "Max clients:   %d\n", c.MaxClients)
	fmt.Fprintf(os.Stdout, "Debug:         %v\n", c.Debug)
	fmt.Fprintf(os.Stdout, "JSON backend:  experimental=%v\n", c.Features.JSONExperimental)
	fmt.Fprintf(os.Stdout, "Event backend: queue=%v\n", c.Features.QueueBackend)
	fmt.Fprintln(os.Stdout, "=====================================")
}
