package httpproxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

// TestS6JSONRewrite reproduces scenario S6 from spec.md §8.
func TestS6JSONRewrite(t *testing.T) {
	var chromePort int
	chrome := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `[{"id":"A","webSocketDebuggerUrl":"ws://127.0.0.1:` + strconv.Itoa(chromePort) + `/devtools/page/A"}]`
		w.Write([]byte(body))
	}))
	defer chrome.Close()
	chromePort = serverPort(t, chrome.URL)

	p := New("127.0.0.1", chromePort, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	req.Host = "example:9222"
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	var tabs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tabs); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(tabs) != 1 {
		t.Fatalf("got %d tabs, want 1", len(tabs))
	}
	got := tabs[0]["webSocketDebuggerUrl"]
	want := "ws://example:9222/devtools/page/A"
	if got != want {
		t.Errorf("webSocketDebuggerUrl = %v, want %v", got, want)
	}
	if got := tabs[0]["devtoolsFrontendUrl"]; got != "/devtools/inspector.html?ws=example:9222/devtools/page/A" {
		t.Errorf("devtoolsFrontendUrl = %v", got)
	}
}

func TestTabWithoutIDPassesThrough(t *testing.T) {
	chrome := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"description":"no id here"}]`))
	}))
	defer chrome.Close()

	p := New("127.0.0.1", serverPort(t, chrome.URL), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/json/list", nil)
	req.Host = "example:9222"
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	var tabs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tabs); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if tabs[0]["description"] != "no id here" {
		t.Errorf("tab without id was mutated: %v", tabs[0])
	}
}

func TestTransparentProxyPreservesMediaType(t *testing.T) {
	chrome := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.Write([]byte("<html></html>"))
	}))
	defer chrome.Close()

	p := New("127.0.0.1", serverPort(t, chrome.URL), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/devtools/inspector.html", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/html")
	}
}

func TestUpstreamConnectionErrorIs502(t *testing.T) {
	p := New("127.0.0.1", 1, zerolog.Nop()) // port 1 refuses connections
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func serverPort(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return port
}
