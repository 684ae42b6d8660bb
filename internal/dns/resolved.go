package dns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// ResolvedStubPath exists while systemd-resolved manages /etc/resolv.conf.
const ResolvedStubPath = "/run/systemd/resolve/stub-resolv.conf"

// ResolvedActive reports whether systemd-resolved is running.
func ResolvedActive(ctx context.Context, r system.Runner) bool {
	if fileutil.Exists(ResolvedStubPath) {
		return true
	}
	active := r.Run(ctx, "systemctl", "is-active", "--quiet", "systemd-resolved").OK
	if !active {
		slog.Info("systemd-resolved is not active")
	}
	return active
}

// Resolved scopes DNS to the tunnel link in systemd-resolved. It prefers
// the D-Bus API and falls back to resolvectl, retried under pkexec.
type Resolved struct {
	Runner system.Runner
	Finder *TunFinder
	// Bus may be nil to use resolvectl only.
	Bus resolvedBus
	// IndexOf maps an interface name to its index.
	IndexOf func(name string) (int, error)

	iface string
}

// NewResolved wires the system bus and net.InterfaceByName.
func NewResolved(r system.Runner) *Resolved {
	return &Resolved{
		Runner:  r,
		Finder:  &TunFinder{Runner: r},
		Bus:     systemResolved{},
		IndexOf: interfaceIndex,
	}
}

func interfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

func (d *Resolved) Name() string { return "systemd-resolved" }

func (d *Resolved) Set(ctx context.Context, servers []string) (string, error) {
	iface, ok := d.Finder.Find(ctx)
	if !ok {
		return "", fmt.Errorf("DNS via systemd-resolved: %w", ErrNoTunInterface)
	}
	servers = orDefault(servers)

	if err := d.setViaBus(iface, servers); err != nil {
		slog.Debug("resolve1 D-Bus update failed, using resolvectl", "interface", iface, "error", err)
		if err := d.setViaResolvectl(ctx, iface, servers); err != nil {
			return "", err
		}
	}

	if status := d.Runner.Run(ctx, "resolvectl", "status", iface); status.OK {
		for i, line := range strings.Split(strings.TrimSpace(status.Stdout), "\n") {
			if i == 8 {
				break
			}
			slog.Debug("resolvectl status", "line", strings.TrimSpace(line))
		}
	}

	d.iface = iface
	return fmt.Sprintf("DNS configured via systemd-resolved on %s (%s)", iface, strings.Join(servers, ", ")), nil
}

func (d *Resolved) setViaBus(iface string, servers []string) error {
	if d.Bus == nil || d.IndexOf == nil {
		return fmt.Errorf("no bus")
	}
	idx, err := d.IndexOf(iface)
	if err != nil {
		return err
	}
	ips := make([]net.IP, 0, len(servers))
	for _, s := range servers {
		ip := net.ParseIP(s)
		if ip == nil {
			return fmt.Errorf("not an IP address: %s", s)
		}
		ips = append(ips, ip)
	}
	if err := d.Bus.SetLinkDNS(idx, ips); err != nil {
		return err
	}
	if err := d.Bus.SetLinkDomains(idx, ".", true); err != nil {
		slog.Warn("Failed to set routing domain, DNS may not route through tunnel", "interface", iface, "error", err)
	}
	if err := d.Bus.SetLinkDefaultRoute(idx, true); err != nil {
		slog.Warn("Failed to set default-route", "interface", iface, "error", err)
	}
	return nil
}

func (d *Resolved) setViaResolvectl(ctx context.Context, iface string, servers []string) error {
	args := append([]string{"dns", iface}, servers...)
	if !system.RunWithElevation(ctx, d.Runner, "resolvectl", args...).OK {
		return fmt.Errorf("failed to set DNS servers on %s via resolvectl", iface)
	}
	if !system.RunWithElevation(ctx, d.Runner, "resolvectl", "domain", iface, "~.").OK {
		slog.Warn("Failed to set routing domain, DNS may not route through tunnel", "interface", iface)
	}
	if !system.RunWithElevation(ctx, d.Runner, "resolvectl", "default-route", iface, "true").OK {
		slog.Warn("Failed to set default-route", "interface", iface)
	}
	return nil
}

func (d *Resolved) Clear(ctx context.Context) {
	iface := d.iface
	d.iface = ""
	if iface == "" {
		var ok bool
		if iface, ok = d.Finder.Find(ctx); !ok {
			slog.Info("No TUN interface to revert, systemd-resolved likely cleaned up with the link")
			return
		}
	}

	if d.Bus != nil && d.IndexOf != nil {
		if idx, err := d.IndexOf(iface); err == nil {
			if err := d.Bus.RevertLink(idx); err == nil {
				slog.Info("Reverted DNS via resolve1", "interface", iface)
				return
			}
		}
	}
	if system.RunWithElevation(ctx, d.Runner, "resolvectl", "revert", iface).OK {
		slog.Info("Reverted DNS", "interface", iface)
		return
	}
	slog.Info("resolvectl revert failed, interface may already be gone", "interface", iface)
}
