package proxy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// desktopBackends selects backends from an XDG_CURRENT_DESKTOP value.
// Several may apply at once.
func desktopBackends(r system.Runner, desktop, kdeVersion string) []Backend {
	var backends []Backend
	if desktopMatches(desktop, gnomeDesktops) {
		slog.Info("Detected proxy backend", "backend", "GSettings")
		backends = append(backends, &GSettings{Runner: r})
	}
	if desktopMatches(desktop, kdeDesktops) {
		slog.Info("Detected proxy backend", "backend", "KDE KIO")
		backends = append(backends, NewKDE(r, kdeVersion))
	}
	if len(backends) == 0 {
		if desktop == "" {
			desktop = "unknown"
		}
		slog.Warn("No proxy backend detected", "desktop", desktop)
	}
	return backends
}

func desktopMatches(desktop string, names []string) bool {
	for _, d := range strings.Split(desktop, ":") {
		for _, n := range names {
			if d == n {
				return true
			}
		}
	}
	return false
}

// cleanupStale clears g when it still points at listenAddress and running
// reports no live client.
func cleanupStale(ctx context.Context, g *GSettings, listenAddress string, running func() bool) bool {
	host, port := ParseHostPort(listenAddress)
	if !g.PointsAt(ctx, host, port) {
		return false
	}
	if running() {
		slog.Debug("Proxy points at a live client, leaving it", "address", listenAddress)
		return false
	}
	slog.Warn("Stale system proxy detected, clearing", "address", listenAddress)
	g.Clear(ctx)
	return true
}
