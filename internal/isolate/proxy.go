package isolate

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/logging"
)

// essentialDomains are always allow-listed regardless of caller-supplied
// extra domains: the minimum a coding agent needs to reach its own
// provider API and package registries.
var essentialDomains = []string{
	"api.anthropic.com",
	"github.com",
	"raw.githubusercontent.com",
	"registry.npmjs.org",
	"pypi.org",
	"files.pythonhosted.org",
	"proxy.golang.org",
	"sum.golang.org",
}

// AllowedDomains returns the essential domain set plus extra, deduplicated.
func AllowedDomains(extra []string) []string {
	seen := make(map[string]bool, len(essentialDomains)+len(extra))
	out := make([]string, 0, len(essentialDomains)+len(extra))
	for _, d := range append(append([]string(nil), essentialDomains...), extra...) {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// Proxy is a localhost-only HTTP/CONNECT proxy that allow-lists outbound
// connections by hostname. No pack example implements a CONNECT proxy;
// this is built directly on net/http and net, the smallest correct
// implementation of the protocol's own CONNECT semantics.
type Proxy struct {
	listener net.Listener
	server   *http.Server
	allowed  map[string]bool
	wg       sync.WaitGroup
}

// StartProxy binds a proxy to an ephemeral localhost port and begins
// serving immediately in the background.
func StartProxy(ctx context.Context, allowedDomains []string) (*Proxy, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "binding proxy listener")
	}

	allowed := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[d] = true
	}

	p := &Proxy{listener: listener, allowed: allowed}
	p.server = &http.Server{Handler: http.HandlerFunc(p.handle)}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Warn(ctx, "proxy server exited", "error", err.Error())
		}
	}()

	return p, nil
}

// URL is the http://host:port value to export as HTTP_PROXY/HTTPS_PROXY.
func (p *Proxy) URL() string {
	return "http://" + p.listener.Addr().String()
}

// Close shuts the proxy down, waiting for the serve goroutine to exit.
func (p *Proxy) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.server.Shutdown(ctx)
	p.wg.Wait()
	return err
}

func (p *Proxy) isAllowed(host string) bool {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	return p.allowed[strings.ToLower(h)]
}

func (p *Proxy) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	p.handlePlain(w, r)
}

// handleConnect tunnels an allow-listed HTTPS CONNECT request.
func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !p.isAllowed(r.Host) {
		http.Error(w, "domain not allow-listed: "+r.Host, http.StatusForbidden)
		return
	}

	dest, err := net.DialTimeout("tcp", r.Host, 10*time.Second)
	if err != nil {
		http.Error(w, "dial failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer func() { _ = dest.Close() }()

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking unsupported", http.StatusInternalServerError)
		return
	}
	client, _, err := hijacker.Hijack()
	if err != nil {
		return
	}
	defer func() { _ = client.Close() }()

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = io.Copy(dest, client) }()
	go func() { defer wg.Done(); _, _ = io.Copy(client, dest) }()
	wg.Wait()
}

// handlePlain proxies a plain HTTP request to an allow-listed host.
func (p *Proxy) handlePlain(w http.ResponseWriter, r *http.Request) {
	if !p.isAllowed(r.Host) {
		http.Error(w, "domain not allow-listed: "+r.Host, http.StatusForbidden)
		return
	}

	outReq := r.Clone(r.Context())
	outReq.RequestURI = ""

	resp, err := http.DefaultTransport.RoundTrip(outReq)
	if err != nil {
		http.Error(w, "upstream request failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
