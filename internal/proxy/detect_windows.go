//go:build windows

package proxy

import (
	"context"
	"log/slog"

	"golang.org/x/sys/windows/registry"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect returns the registry backend; WinINet settings always exist.
func Detect(system.Runner) []Backend {
	return []Backend{Registry{}}
}

// EmergencyClear resets the registry proxy unconditionally.
func EmergencyClear(ctx context.Context, _ system.Runner) {
	slog.Error("Emergency proxy cleanup")
	Registry{}.Clear(ctx)
}

// CleanupStale clears a proxy left pointing at listenAddress by a previous
// run when no client process is alive to serve it.
func CleanupStale(ctx context.Context, _ system.Runner, listenAddress, clientImage string) {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.QUERY_VALUE)
	if err != nil {
		return
	}
	enabled, _, err := key.GetIntegerValue("ProxyEnable")
	server, _, _ := key.GetStringValue("ProxyServer")
	_ = key.Close()
	if err != nil || enabled == 0 || server != "socks="+listenAddress {
		return
	}
	if system.ProcessRunning(ctx, clientImage) {
		return
	}
	slog.Warn("Stale system proxy detected, clearing", "server", server)
	Registry{}.Clear(ctx)
}
