//go:build !linux && !windows

package dns

import (
	"context"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Detect finds no backend on this platform.
func Detect(context.Context, system.Runner) Backend { return nil }

// EmergencyClear has nothing to restore here.
func EmergencyClear(context.Context, system.Runner) {}
