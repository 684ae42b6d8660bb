// Package dns overrides the system resolver while a TUN session is up and
// restores it afterwards.
package dns

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
)

// ErrNoTunInterface is returned by Set when no tunnel link exists to scope DNS to.
var ErrNoTunInterface = errors.New("no TUN interface found")

// DefaultServers are used when no upstream yields an IP literal.
var DefaultServers = []string{"1.1.1.1", "1.0.0.1"}

// Backend overrides DNS through one resolver manager.
type Backend interface {
	Name() string
	// Set points system DNS at servers, or DefaultServers when empty.
	// It must not mutate global state when it fails.
	Set(ctx context.Context, servers []string) (string, error)
	// Clear reverts Set. A vanished interface is an expected outcome.
	Clear(ctx context.Context)
}

// Override tracks a successfully applied backend. A nil Override is valid.
type Override struct {
	mu      sync.Mutex
	backend Backend
}

// Apply sets DNS through backend. A nil Override is returned on failure,
// since nothing needs restoring.
func Apply(ctx context.Context, backend Backend, upstreams []string) (*Override, string, error) {
	servers := ServersFromUpstreams(upstreams)
	detail, err := backend.Set(ctx, servers)
	if err != nil {
		slog.Warn("DNS override failed", "backend", backend.Name(), "error", err)
		return nil, "", err
	}
	slog.Info("DNS override applied", "backend", backend.Name(), "detail", detail)
	return &Override{backend: backend}, detail, nil
}

// Active reports whether Clear still has work to do.
func (o *Override) Active() bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backend != nil
}

// Clear restores DNS once. Later calls are no-ops.
func (o *Override) Clear(ctx context.Context) {
	if o == nil {
		return
	}
	o.mu.Lock()
	b := o.backend
	o.backend = nil
	o.mu.Unlock()

	if b != nil {
		slog.Info("Restoring system DNS", "backend", b.Name())
		b.Clear(ctx)
	}
}

// ServersFromUpstreams reduces client upstream URLs such as tls://1.1.1.1
// or 8.8.8.8:53 to plain IP addresses. Hostname upstreams are skipped.
func ServersFromUpstreams(upstreams []string) []string {
	var servers []string
	seen := make(map[string]bool)
	for _, raw := range upstreams {
		host := upstreamHost(strings.TrimSpace(raw))
		ip := net.ParseIP(host)
		if ip == nil {
			continue
		}
		s := ip.String()
		if !seen[s] {
			seen[s] = true
			servers = append(servers, s)
		}
	}
	if len(servers) == 0 {
		return append([]string(nil), DefaultServers...)
	}
	return servers
}

func upstreamHost(raw string) string {
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			return u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return h
	}
	return strings.Trim(raw, "[]")
}

func orDefault(servers []string) []string {
	if len(servers) == 0 {
		return DefaultServers
	}
	return servers
}
