// Package httpproxy implements spec.md §4.4: a transparent GET proxy
// to the upstream browser's HTTP discovery surface, with URL rewriting
// for the /json and /json/list tab-list endpoints so clients see the
// proxy's own address rather than the browser's.
package httpproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// hopByHopHeaders must never be forwarded across a proxy hop; they
// describe the connection itself, not the resource.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Proxy is an http.Handler for every non-WebSocket, non-status path.
type Proxy struct {
	chromeHost string
	chromePort int
	client     *http.Client
	logger     zerolog.Logger
}

// New builds a Proxy targeting http://chromeHost:chromePort.
func New(chromeHost string, chromePort int, logger zerolog.Logger) *Proxy {
	return &Proxy{
		chromeHost: chromeHost,
		chromePort: chromePort,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstreamURL := fmt.Sprintf("http://%s:%d%s", p.chromeHost, p.chromePort, r.URL.RequestURI())

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstreamURL, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", upstreamURL).Msg("upstream connection error")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if r.URL.Path == "/json" || r.URL.Path == "/json/list" {
		p.rewriteTabList(w, r, resp)
		return
	}

	copyResponseHeaders(w.Header(), resp.Header)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", strings.SplitN(ct, ";", 2)[0])
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// rewriteTabList implements spec.md §4.4 steps 1-6: rewrite every
// <match>:<chrome_port>/ occurrence to <proxy_host>:<proxy_port>/ and
// synthesize the WebSocket/devtools-frontend URLs that upstream
// omitted.
func (p *Proxy) rewriteTabList(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	var tabs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	proxyHost, proxyPort := splitHost(r.Host)
	matches := []string{"127.0.0.1", "localhost", p.chromeHost}

	for _, tab := range tabs {
		for key, v := range tab {
			s, ok := v.(string)
			if !ok {
				continue
			}
			tab[key] = rewriteHostPort(s, matches, p.chromePort, proxyHost, proxyPort)
		}

		id, hasID := tab["id"].(string)
		if !hasID || id == "" {
			p.logger.Warn().Interface("tab", tab).Msg("tab without id")
			continue
		}

		devtoolsURL := fmt.Sprintf("%s:%s/devtools/page/%s", proxyHost, proxyPort, id)
		if _, ok := tab["webSocketDebuggerUrl"]; !ok {
			tab["webSocketDebuggerUrl"] = "ws://" + devtoolsURL
		}
		if _, ok := tab["devtoolsFrontendUrl"]; !ok {
			tab["devtoolsFrontendUrl"] = "/devtools/inspector.html?ws=" + devtoolsURL
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	json.NewEncoder(w).Encode(tabs)
}

// rewriteHostPort tries the candidate matches in order and, for the
// first whose "<match>:<chromePort>/" occurs in s, replaces every
// occurrence of it with "<proxyHost>:<proxyPort>/", per spec.md §4.4
// step 2. Later candidates are not tried once one has matched.
func rewriteHostPort(s string, matches []string, chromePort int, proxyHost, proxyPort string) string {
	for _, match := range matches {
		old := fmt.Sprintf("%s:%d/", match, chromePort)
		if strings.Contains(s, old) {
			return strings.ReplaceAll(s, old, proxyHost+":"+proxyPort+"/")
		}
	}
	return s
}

func splitHost(hostHeader string) (host, port string) {
	idx := strings.LastIndexByte(hostHeader, ':')
	if idx == -1 {
		return hostHeader, ""
	}
	return hostHeader[:idx], hostHeader[idx+1:]
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] || strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] || key == "Content-Type" {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
