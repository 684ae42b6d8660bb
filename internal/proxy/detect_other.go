//go:build !linux && !windows

package proxy

import (
	"context"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect returns no backends on platforms without proxy integration.
func Detect(system.Runner) []Backend { return nil }

// EmergencyClear has nothing to restore here.
func EmergencyClear(context.Context, system.Runner) {}

// CleanupStale has nothing to restore here.
func CleanupStale(context.Context, system.Runner, string, string) {}
