package config

import (
	"os"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error: %v", err)
	}
	if len(cfg.ProxyHosts) != 1 || cfg.ProxyHosts[0] != "127.0.0.1" {
		t.Errorf("ProxyHosts = %v, want [127.0.0.1]", cfg.ProxyHosts)
	}
	if len(cfg.ProxyPorts) != 1 || cfg.ProxyPorts[0] != 9222 {
		t.Errorf("ProxyPorts = %v, want [9222]", cfg.ProxyPorts)
	}
	if cfg.ChromeHost != "127.0.0.1" || cfg.ChromePort != 12222 {
		t.Errorf("chrome addr = %s:%d, want 127.0.0.1:12222", cfg.ChromeHost, cfg.ChromePort)
	}
	if cfg.MaxClients != 2 {
		t.Errorf("MaxClients = %d, want 2", cfg.MaxClients)
	}
}

func TestParseRepeatableHostsAndPortsDeduped(t *testing.T) {
	args := []string{
		"--host", "0.0.0.0",
		"--host", "::1",
		"--port", "9000",
		"--port", "9001",
		"--port", "9000",
	}
	cfg, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cfg.ProxyHosts) != 2 {
		t.Errorf("ProxyHosts = %v, want 2 entries", cfg.ProxyHosts)
	}
	if len(cfg.ProxyPorts) != 2 {
		t.Errorf("ProxyPorts = %v, want deduped to 2 entries", cfg.ProxyPorts)
	}
}

func TestParseRejectsBadMaxClients(t *testing.T) {
	if _, err := Parse([]string{"--max-clients", "0"}); err == nil {
		t.Error("expected error for --max-clients=0")
	}
}

func TestFeatureFlagsFromEnv(t *testing.T) {
	os.Setenv("DTP_JSON_EXPERIMENTAL", "TRUE")
	os.Setenv("DTP_QUEUE_BACKEND", "false")
	defer os.Unsetenv("DTP_JSON_EXPERIMENTAL")
	defer os.Unsetenv("DTP_QUEUE_BACKEND")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !cfg.Features.JSONExperimental {
		t.Error("JSONExperimental should be true from env")
	}
	if cfg.Features.QueueBackend {
		t.Error("QueueBackend should be false from env")
	}
}
