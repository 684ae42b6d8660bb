//go:build linux

package dns

import (
	"context"
	"log/slog"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect selects systemd-resolved, then resolvconf. It returns nil when neither is usable.
func Detect(ctx context.Context, r system.Runner) Backend {
	if ResolvedActive(ctx, r) {
		slog.Info("Selected DNS backend", "backend", "systemd-resolved")
		return NewResolved(r)
	}
	if ResolvconfAvailable(ctx, r) {
		slog.Info("Selected DNS backend", "backend", "resolvconf")
		return &Resolvconf{Runner: r}
	}
	slog.Info("No DNS backend available")
	return nil
}

// EmergencyClear reverts every TUN link and drops the resolvconf record
// without relying on session state.
func EmergencyClear(ctx context.Context, r system.Runner) {
	slog.Error("Emergency DNS cleanup, attempting all known backends")
	finder := &TunFinder{Runner: r}
	for _, name := range finder.ListTun(ctx) {
		system.RunWithElevation(ctx, r, "resolvectl", "revert", name)
	}
	system.RunWithElevation(ctx, r, "resolvconf", "-d", ResolvconfInterface)
}
