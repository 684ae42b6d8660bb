//go:build linux

package vpn

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
	"github.com/shini4i/trusttunnel-gui/internal/system"
)

const tunDevicePath = "/dev/net/tun"

const (
	tunRemediation = "/dev/net/tun not found. Load the tun kernel module:\n  sudo modprobe tun\n\n" +
		"To make it persistent, add 'tun' to /etc/modules-load.d/tun.conf"
	elevationRemediation = "pkexec is required for TUN mode (root privileges needed).\n" +
		"Install policykit-1 or try Proxy/System Proxy mode instead."
	elevationDismissedDetail = "pkexec authentication was dismissed — try again and authenticate when prompted"
)

var binaryCandidates = []string{
	clientImage,
	"/opt/trusttunnel_client/trusttunnel_client",
	"/usr/local/bin/trusttunnel_client",
	"/usr/bin/trusttunnel_client",
}

// linuxServices starts the client directly or through pkexec and manages
// desktop proxy and resolver state with command-line tools.
type linuxServices struct {
	runner system.Runner
}

// NewServices returns the Linux implementation.
func NewServices(r system.Runner) Services {
	return &linuxServices{runner: r}
}

func (s *linuxServices) FindClientBinary(configured string) (string, bool) {
	return findBinary(configured, binaryCandidates)
}

func (s *linuxServices) CheckTunDevice() bool {
	if fileutil.Exists(tunDevicePath) {
		slog.Debug("TUN device present", "path", tunDevicePath)
		return true
	}
	slog.Warn("TUN device missing, the tun kernel module may not be loaded", "path", tunDevicePath)
	return false
}

func (s *linuxServices) CheckElevation() bool {
	if os.Geteuid() == 0 {
		return true
	}
	if _, err := exec.LookPath(system.ElevationWrapper); err != nil {
		slog.Warn("pkexec not found, TUN mode will not work without root privileges")
		return false
	}
	return true
}

func (s *linuxServices) CheckBinaryWorks(ctx context.Context, binary string, needsRoot bool) error {
	return checkBinaryWorks(ctx, s.runner, binary, needsRoot)
}

func (s *linuxServices) Spawn(_ context.Context, binary, configPath string, elevate bool) (Child, error) {
	if elevate && os.Geteuid() != 0 {
		slog.Info("Spawning client", "command", system.CommandLine(system.ElevationWrapper, []string{binary, "-c", configPath}))
		return StartDirect(system.ElevationWrapper, binary, "-c", configPath)
	}
	slog.Info("Spawning client", "command", system.CommandLine(binary, []string{"-c", configPath}))
	return StartDirect(binary, "-c", configPath)
}

// Terminate sends SIGINT. A client started through pkexec runs as root, so
// a refused signal is retried through pkexec in the background to keep the
// caller responsive while the prompt is open.
func (s *linuxServices) Terminate(ctx context.Context, child Child) error {
	if child.IsElevated() {
		return child.Kill()
	}
	pid := child.ID()
	err := unix.Kill(pid, unix.SIGINT)
	switch {
	case err == nil:
		slog.Info("Sent SIGINT to client", "pid", pid)
		return nil
	case errors.Is(err, unix.ESRCH):
		return nil
	}
	slog.Info("SIGINT failed, retrying through pkexec", "pid", pid, "error", err)
	killCtx := context.WithoutCancel(ctx)
	emergency.Go(func() {
		s.runner.Run(killCtx, system.ElevationWrapper, "kill", "-INT", strconv.Itoa(pid))
	})
	return nil
}

func (s *linuxServices) ForceKill(ctx context.Context, child Child) error {
	if child.IsElevated() {
		return child.Kill()
	}
	res := s.runner.Run(ctx, system.ElevationWrapper, "kill", "-KILL", strconv.Itoa(child.ID()))
	if !res.OK {
		return errors.New("pkexec kill failed: " + res.Output())
	}
	return nil
}

func (s *linuxServices) ProxyBackends(context.Context) []proxy.Backend {
	return proxy.Detect(s.runner)
}

func (s *linuxServices) DNSBackend(ctx context.Context) dns.Backend {
	return dns.Detect(ctx, s.runner)
}

func (s *linuxServices) ClientManagesDNS(ctx context.Context) bool {
	return dns.ResolvedActive(ctx, s.runner)
}

func (s *linuxServices) StartupCleanup(ctx context.Context) {
	proxy.CleanupStale(ctx, s.runner, clientconfig.ProxyListenAddress, clientImage)
}

func (s *linuxServices) EmergencyCleanup(ctx context.Context) {
	proxy.EmergencyClear(ctx, s.runner)
	dns.EmergencyClear(ctx, s.runner)
}
