//go:build linux

package proxy

import (
	"context"
	"log/slog"
	"os"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect returns the proxy backends for the running desktop session.
func Detect(r system.Runner) []Backend {
	return desktopBackends(r, os.Getenv("XDG_CURRENT_DESKTOP"), os.Getenv("KDE_SESSION_VERSION"))
}

// EmergencyClear resets every known store without relying on session state.
func EmergencyClear(ctx context.Context, r system.Runner) {
	slog.Error("Emergency proxy cleanup, trying all known backends")
	(&GSettings{Runner: r}).Clear(ctx)
	NewKDE(r, os.Getenv("KDE_SESSION_VERSION")).Clear(ctx)
}

// CleanupStale clears a GNOME proxy left pointing at listenAddress by a
// previous run when no client process is alive to serve it.
func CleanupStale(ctx context.Context, r system.Runner, listenAddress, clientImage string) {
	cleanupStale(ctx, &GSettings{Runner: r}, listenAddress, func() bool {
		return system.ProcessRunning(ctx, clientImage)
	})
}
