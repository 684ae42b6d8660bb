package dns

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// DefaultSysClassNet is where Linux exposes network interfaces.
const DefaultSysClassNet = "/sys/class/net"

// TunFinder locates the tunnel's virtual interface.
type TunFinder struct {
	Runner system.Runner
	// SysClassNet overrides DefaultSysClassNet.
	SysClassNet string
}

// Find tries ip(8), then a sysfs scan for tun_flags, then probes tun0-tun3.
func (f *TunFinder) Find(ctx context.Context) (string, bool) {
	if names := f.ListTun(ctx); len(names) > 0 {
		slog.Debug("Found TUN interface via ip", "name", names[0])
		return names[0], true
	}

	root := f.root()
	entries, err := os.ReadDir(root)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			if _, err := os.Stat(filepath.Join(root, name, "tun_flags")); err == nil {
				slog.Debug("Found TUN interface via sysfs", "name", name)
				return name, true
			}
		}
	}

	for _, candidate := range []string{"tun0", "tun1", "tun2", "tun3"} {
		if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
			slog.Debug("Found TUN interface by name probe", "name", candidate)
			return candidate, true
		}
	}

	slog.Warn("No TUN interface found")
	return "", false
}

// ListTun returns the names reported by `ip -o link show type tun`.
func (f *TunFinder) ListTun(ctx context.Context) []string {
	if f.Runner == nil {
		return nil
	}
	res := f.Runner.Run(ctx, "ip", "-o", "link", "show", "type", "tun")
	if !res.OK {
		return nil
	}
	return parseIPLink(res.Stdout)
}

func (f *TunFinder) root() string {
	if f.SysClassNet != "" {
		return f.SysClassNet
	}
	return DefaultSysClassNet
}

// parseIPLink extracts interface names from `ip -o link` output lines
// such as "5: tun0: <POINTOPOINT,...> mtu 1280 ...".
func parseIPLink(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		if i := strings.IndexByte(name, '@'); i > 0 {
			name = name[:i]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
