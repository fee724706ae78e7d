package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adred-codev/devtoolsproxy/internal/config"
)

func TestServeHTTPReportsConfig(t *testing.T) {
	cfg := &config.Config{
		ProxyHosts: []string{"0.0.0.0"},
		ProxyPorts: []int{9222},
		ChromeHost: "127.0.0.1",
		ChromePort: 12222,
		MaxClients: 4,
		Debug:      true,
		Features: config.FeatureFlags{
			JSONExperimental: true,
			QueueBackend:     false,
		},
	}

	h := New(cfg)
	req := httptest.NewRequest(http.MethodGet, "/status.json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got["chrome_port"].(float64) != 12222 {
		t.Errorf("chrome_port = %v", got["chrome_port"])
	}
	if got["max_clients"].(float64) != 4 {
		t.Errorf("max_clients = %v", got["max_clients"])
	}
	features := got["features"].(map[string]any)
	if features["json_experimental"] != true {
		t.Errorf("json_experimental = %v", features["json_experimental"])
	}
	if features["queue_backend"] != false {
		t.Errorf("queue_backend = %v", features["queue_backend"])
	}
}
