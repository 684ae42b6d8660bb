package dns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// ResolvconfInterface is the record name registered with resolvconf.
const ResolvconfInterface = "tun-trusttunnel"

// ResolvconfAvailable reports whether resolvconf is on PATH.
func ResolvconfAvailable(ctx context.Context, r system.Runner) bool {
	return r.Run(ctx, "which", "resolvconf").OK
}

// Resolvconf registers nameservers as an exclusive resolvconf record.
type Resolvconf struct {
	Runner system.Runner
}

func (d *Resolvconf) Name() string { return "resolvconf" }

func (d *Resolvconf) Set(ctx context.Context, servers []string) (string, error) {
	servers = orDefault(servers)
	lines := make([]string, 0, len(servers))
	for _, s := range servers {
		lines = append(lines, "nameserver "+s)
	}
	record := strings.Join(lines, "\n") + "\n"
	list := strings.Join(servers, ", ")

	if d.Runner.RunInput(ctx, record, "resolvconf", "-a", ResolvconfInterface, "-m", "0", "-x").OK {
		return fmt.Sprintf("DNS configured via resolvconf (%s)", list), nil
	}
	slog.Debug("resolvconf -a failed, retrying with pkexec")

	// pkexec does not forward stdin.
	script := fmt.Sprintf("printf '%%s\\n' %s | resolvconf -a %s -m 0 -x",
		shellescape.QuoteCommand(lines), ResolvconfInterface)
	if d.Runner.Run(ctx, system.ElevationWrapper, "sh", "-c", script).OK {
		return fmt.Sprintf("DNS configured via resolvconf with pkexec (%s)", list), nil
	}
	return "", fmt.Errorf("failed to set DNS via resolvconf (tried both direct and pkexec)")
}

func (d *Resolvconf) Clear(ctx context.Context) {
	if !system.RunWithElevation(ctx, d.Runner, "resolvconf", "-d", ResolvconfInterface).OK {
		slog.Warn("resolvconf -d failed")
	}
}
