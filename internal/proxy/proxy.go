// Package proxy points the desktop's system-wide proxy settings at the
// client's local SOCKS listener and restores them afterwards.
package proxy

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// DefaultPort is used when a listen address carries no parsable port.
const DefaultPort = 1080

// NoProxyHosts are the loopback and private ranges that bypass the proxy.
var NoProxyHosts = []string{"localhost", "127.0.0.0/8", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// Backend reads and writes one system proxy configuration store.
type Backend interface {
	Name() string
	// Set points the store at a SOCKS5 proxy. The returned detail is shown
	// to the user; on failure the error text is.
	Set(ctx context.Context, host string, port int) (string, error)
	// Clear restores direct connections. It never fails loudly.
	Clear(ctx context.Context)
}

// Override holds the backends a Set pass touched so exactly those are cleared.
// A nil Override is valid and clears nothing.
type Override struct {
	mu       sync.Mutex
	backends []Backend
}

// Apply runs Set on every backend. Individual failures do not stop the
// pass; every outcome is joined into the returned detail.
func Apply(ctx context.Context, backends []Backend, host string, port int) (*Override, string) {
	if len(backends) == 0 {
		slog.Warn("No proxy backend available")
		return &Override{}, "No proxy backend available"
	}

	details := make([]string, 0, len(backends))
	for _, b := range backends {
		detail, err := b.Set(ctx, host, port)
		if err != nil {
			slog.Warn("Proxy backend failed", "backend", b.Name(), "error", err)
			details = append(details, err.Error())
			continue
		}
		slog.Info("Proxy backend applied", "backend", b.Name(), "detail", detail)
		details = append(details, detail)
	}
	return &Override{backends: backends}, strings.Join(details, "; ")
}

// Active reports whether any backend still awaits Clear.
func (o *Override) Active() bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.backends) > 0
}

// Names lists the backends still awaiting Clear.
func (o *Override) Names() []string {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.backends))
	for _, b := range o.backends {
		names = append(names, b.Name())
	}
	return names
}

// Clear restores every backend once. Later calls are no-ops.
func (o *Override) Clear(ctx context.Context) {
	if o == nil {
		return
	}
	o.mu.Lock()
	backends := o.backends
	o.backends = nil
	o.mu.Unlock()

	for _, b := range backends {
		slog.Info("Clearing system proxy", "backend", b.Name())
		b.Clear(ctx)
	}
}

// ParseHostPort splits a listen address. Bracketed and bare IPv6 hosts are
// supported; a missing or invalid port yields DefaultPort.
func ParseHostPort(address string) (string, int) {
	if strings.HasPrefix(address, "[") {
		if end := strings.IndexByte(address, ']'); end > 0 {
			host := address[1:end]
			rest := address[end+1:]
			if p, ok := parsePort(strings.TrimPrefix(rest, ":")); ok && strings.HasPrefix(rest, ":") {
				return host, p
			}
			return host, DefaultPort
		}
	}

	idx := strings.LastIndexByte(address, ':')
	if idx < 0 {
		return address, DefaultPort
	}
	host := address[:idx]
	if strings.Contains(host, ":") {
		return address, DefaultPort
	}
	if p, ok := parsePort(address[idx+1:]); ok {
		return host, p
	}
	return host, DefaultPort
}

func parsePort(s string) (int, bool) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return int(p), true
}
