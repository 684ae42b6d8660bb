//go:build windows

package dns

import (
	"context"
	"log/slog"

	"golang.org/x/sys/windows"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect returns the PowerShell backend when running as administrator.
func Detect(_ context.Context, r system.Runner) Backend {
	if !windows.GetCurrentProcessToken().IsElevated() {
		slog.Info("No DNS backend available (not running as administrator)")
		return nil
	}
	slog.Info("Selected DNS backend", "backend", "PowerShell")
	return &PowerShell{Runner: r}
}

// EmergencyClear restores adapter DNS.
func EmergencyClear(ctx context.Context, r system.Runner) {
	slog.Error("Emergency DNS cleanup, restoring adapters via PowerShell")
	ResetAdapters(ctx, r)
}
