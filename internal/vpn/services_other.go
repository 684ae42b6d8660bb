//go:build !linux && !windows

package vpn

import (
	"context"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
	"github.com/shini4i/trusttunnel-gui/internal/system"
)

const (
	tunRemediation           = "TUN mode is not supported on this platform. Use Proxy mode instead."
	elevationRemediation     = "Root privileges are required for TUN mode."
	elevationDismissedDetail = "Elevation was dismissed — try again and authenticate when prompted"
)

// otherServices supports proxy mode only, without system integration.
type otherServices struct {
	runner system.Runner
}

// NewServices returns the generic implementation.
func NewServices(r system.Runner) Services {
	return &otherServices{runner: r}
}

func (s *otherServices) FindClientBinary(configured string) (string, bool) {
	return findBinary(configured, []string{clientImage, "/usr/local/bin/trusttunnel_client"})
}

func (s *otherServices) CheckTunDevice() bool { return false }

func (s *otherServices) CheckElevation() bool { return os.Geteuid() == 0 }

func (s *otherServices) CheckBinaryWorks(ctx context.Context, binary string, needsRoot bool) error {
	return checkBinaryWorks(ctx, s.runner, binary, needsRoot)
}

func (s *otherServices) Spawn(_ context.Context, binary, configPath string, _ bool) (Child, error) {
	slog.Info("Spawning client", "command", system.CommandLine(binary, []string{"-c", configPath}))
	return StartDirect(binary, "-c", configPath)
}

func (s *otherServices) Terminate(_ context.Context, child Child) error {
	if err := unix.Kill(child.ID(), unix.SIGINT); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

func (s *otherServices) ForceKill(_ context.Context, child Child) error {
	return child.Kill()
}

func (s *otherServices) ProxyBackends(context.Context) []proxy.Backend { return proxy.Detect(s.runner) }

func (s *otherServices) DNSBackend(ctx context.Context) dns.Backend { return dns.Detect(ctx, s.runner) }

func (s *otherServices) ClientManagesDNS(context.Context) bool { return false }

func (s *otherServices) StartupCleanup(context.Context) {}

func (s *otherServices) EmergencyCleanup(ctx context.Context) {
	proxy.EmergencyClear(ctx, s.runner)
	dns.EmergencyClear(ctx, s.runner)
}
