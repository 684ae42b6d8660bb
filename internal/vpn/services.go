package vpn

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// Services is the platform layer the controller drives. NewServices returns
// the implementation for the running OS; tests substitute a fake.
type Services interface {
	// FindClientBinary locates the client, preferring configured when set.
	FindClientBinary(configured string) (string, bool)
	// CheckTunDevice reports whether the TUN driver is present.
	CheckTunDevice() bool
	// CheckElevation reports whether an elevation mechanism is available.
	CheckElevation() bool
	// CheckBinaryWorks runs the binary with --help unless it needs root.
	CheckBinaryWorks(ctx context.Context, binary string, needsRoot bool) error

	// Spawn starts the client with -c configPath, elevated when asked.
	Spawn(ctx context.Context, binary, configPath string, elevate bool) (Child, error)
	// Terminate asks the client to exit gracefully.
	Terminate(ctx context.Context, child Child) error
	// ForceKill kills a child that resisted Kill, using elevation if needed.
	ForceKill(ctx context.Context, child Child) error

	// ProxyBackends returns the system proxy mechanisms of this session.
	ProxyBackends(ctx context.Context) []proxy.Backend
	// DNSBackend returns the resolver manager to use, or nil.
	DNSBackend(ctx context.Context) dns.Backend
	// ClientManagesDNS reports whether the client can change system DNS itself.
	ClientManagesDNS(ctx context.Context) bool

	// StartupCleanup removes leftovers of a previous crashed session.
	StartupCleanup(ctx context.Context)
	// EmergencyCleanup restores every system setting this program may have
	// changed without relying on session state.
	EmergencyCleanup(ctx context.Context)
}

// clientImage is the process name used for kill-by-name and liveness checks.
const clientImage = "trusttunnel_client"

// findBinary returns the first candidate found on PATH or on disk.
func findBinary(configured string, candidates []string) (string, bool) {
	if configured != "" {
		if path, ok := probeBinary(configured); ok {
			slog.Info("Using configured client binary", "path", path)
			return path, true
		}
		slog.Warn("Configured client binary not found, searching defaults", "path", configured)
	}
	for _, candidate := range candidates {
		if path, ok := probeBinary(candidate); ok {
			slog.Info("Found client binary", "candidate", candidate, "path", path)
			return path, true
		}
	}
	slog.Warn("Client binary not found in search paths", "candidates", candidates)
	return "", false
}

func probeBinary(candidate string) (string, bool) {
	if path, err := exec.LookPath(candidate); err == nil {
		return path, true
	}
	if fileutil.Exists(candidate) {
		return candidate, true
	}
	return "", false
}

// checkBinaryWorks runs binary --help through r. Only a failure to start
// the binary is an error; an exit code from --help is not.
func checkBinaryWorks(ctx context.Context, r system.Runner, binary string, needsRoot bool) error {
	if needsRoot {
		slog.Debug("Skipping elevated binary check")
		return nil
	}
	res := r.Run(ctx, binary, "--help")
	if res.Code == -1 && !res.OK {
		return fmt.Errorf("cannot run '%s': %s", binary, res.Output())
	}
	if out := res.Output(); out != "" {
		slog.Info("Client binary responds", "binary", binary, "code", res.Code)
	} else {
		slog.Warn("Client binary produced no output", "binary", binary)
	}
	return nil
}
