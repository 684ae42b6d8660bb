//go:build windows

package vpn

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/windows"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
	"github.com/shini4i/trusttunnel-gui/internal/system"
)

const clientExe = clientImage + ".exe"

const (
	tunRemediation = "wintun.dll not found. Place wintun.dll next to trusttunnel_client.exe " +
		"or in the TrustTunnel install directory.\n  https://www.wintun.net"
	elevationRemediation     = "Administrator privileges are required for TUN mode."
	elevationDismissedDetail = "The UAC prompt was dismissed — try again and accept the prompt"
)

// windowsServices starts the client directly, or through a UAC prompt when
// TUN mode needs elevation, and manages the WinINet proxy.
type windowsServices struct {
	runner system.Runner
}

// NewServices returns the Windows implementation.
func NewServices(r system.Runner) Services {
	return &windowsServices{runner: r}
}

func isAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func exeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

func (s *windowsServices) FindClientBinary(configured string) (string, bool) {
	candidates := []string{clientExe}
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LOCALAPPDATA"} {
		if dir := os.Getenv(env); dir != "" {
			candidates = append(candidates, filepath.Join(dir, "TrustTunnel", clientExe))
		}
	}
	if dir := exeDir(); dir != "" {
		candidates = append(candidates, filepath.Join(dir, clientExe))
	}
	return findBinary(configured, candidates)
}

func (s *windowsServices) CheckTunDevice() bool {
	var paths []string
	if dir := exeDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, "wintun.dll"))
	}
	if root := os.Getenv("SystemRoot"); root != "" {
		paths = append(paths, filepath.Join(root, "System32", "wintun.dll"))
	}
	if pf := os.Getenv("ProgramFiles"); pf != "" {
		paths = append(paths, filepath.Join(pf, "TrustTunnel", "wintun.dll"))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, "wintun.dll"))
	}
	for _, p := range paths {
		if fileutil.Exists(p) {
			slog.Info("wintun.dll found", "path", p)
			return true
		}
	}
	slog.Warn("wintun.dll not found", "searched", paths)
	return false
}

func (s *windowsServices) CheckElevation() bool {
	if isAdmin() {
		slog.Debug("Running with administrator privileges")
	} else {
		slog.Info("Not running as administrator, TUN mode will use UAC elevation")
	}
	return true
}

func (s *windowsServices) CheckBinaryWorks(ctx context.Context, binary string, needsRoot bool) error {
	return checkBinaryWorks(ctx, s.runner, binary, needsRoot)
}

func (s *windowsServices) Spawn(_ context.Context, binary, configPath string, elevate bool) (Child, error) {
	if !elevate || isAdmin() {
		slog.Info("Spawning client", "command", system.CommandLine(binary, []string{"-c", configPath}))
		return StartDirect(binary, "-c", configPath)
	}

	logPath, markerPath := ElevatedPaths(os.TempDir(), os.Getpid())
	if err := PrepareElevatedFiles(logPath, markerPath); err != nil {
		return nil, err
	}
	script := elevatedScript(binary, configPath, logPath, markerPath)
	args := "-NoProfile -NonInteractive -WindowStyle Hidden -ExecutionPolicy Bypass -EncodedCommand " +
		encodePowerShell(script)

	slog.Info("Spawning elevated client", "binary", binary, "config", configPath, "log", logPath)
	if err := shellExecuteRunAs("powershell.exe", args); err != nil {
		return nil, fmt.Errorf("UAC elevation was denied or ShellExecute failed: %w. "+
			"You can also run TrustTunnel as Administrator", err)
	}
	return &ElevatedChild{
		LogPath:    logPath,
		MarkerPath: markerPath,
		Terminate:  s.terminateElevated,
	}, nil
}

// terminateElevated kills the client by image name; there is no handle to
// the process started behind UAC.
func (s *windowsServices) terminateElevated(ctx context.Context) error {
	slog.Info("Terminating elevated client by image name", "image", clientExe)
	if n, err := system.KillByName(ctx, clientExe); err == nil && n > 0 {
		return nil
	}
	res := s.runner.Run(ctx, "taskkill", "/F", "/IM", clientExe)
	if !res.OK {
		return fmt.Errorf("taskkill %s: %s", clientExe, res.Output())
	}
	return nil
}

func terminatePID(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open pid %d: %w", pid, err)
	}
	defer func() { _ = windows.CloseHandle(h) }()
	if err := windows.TerminateProcess(h, 0); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	return nil
}

func (s *windowsServices) Terminate(_ context.Context, child Child) error {
	if child.IsElevated() {
		return child.Kill()
	}
	slog.Info("Terminating client via native API", "pid", child.ID())
	return terminatePID(child.ID())
}

func (s *windowsServices) ForceKill(ctx context.Context, child Child) error {
	if child.IsElevated() {
		return child.Kill()
	}
	res := s.runner.Run(ctx, "taskkill", "/F", "/PID", strconv.Itoa(child.ID()))
	if !res.OK {
		return fmt.Errorf("taskkill pid %d: %s", child.ID(), res.Output())
	}
	return nil
}

func (s *windowsServices) ProxyBackends(context.Context) []proxy.Backend {
	return proxy.Detect(s.runner)
}

func (s *windowsServices) DNSBackend(ctx context.Context) dns.Backend {
	return dns.Detect(ctx, s.runner)
}

// ClientManagesDNS is false: the client does not reconfigure Windows adapters.
func (s *windowsServices) ClientManagesDNS(context.Context) bool {
	return false
}

func (s *windowsServices) StartupCleanup(ctx context.Context) {
	proxy.CleanupStale(ctx, s.runner, clientconfig.ProxyListenAddress, clientExe)
	SweepElevatedFiles(os.TempDir(), os.Getpid())
}

func (s *windowsServices) EmergencyCleanup(ctx context.Context) {
	proxy.EmergencyClear(ctx, s.runner)
	dns.EmergencyClear(ctx, s.runner)
	if system.ProcessRunning(ctx, clientExe) {
		if err := s.terminateElevated(ctx); err != nil {
			slog.Warn("Emergency client termination failed", "error", err)
		}
	}
	logPath, markerPath := ElevatedPaths(os.TempDir(), os.Getpid())
	_ = fileutil.RemoveIfExists(logPath, markerPath)
}
