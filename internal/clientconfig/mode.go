// Package clientconfig models the TrustTunnel client's TOML configuration
// and the tunnel modes the GUI can launch it in.
package clientconfig

import (
	"fmt"
	"strings"
)

// Mode selects how traffic reaches the client.
type Mode string

const (
	// ModeTun routes all system traffic through a virtual network interface.
	ModeTun Mode = "tun"
	// ModeSystemProxy runs a local SOCKS listener and points the desktop proxy settings at it.
	ModeSystemProxy Mode = "system_proxy"
	// ModeProxy runs a local SOCKS listener the user configures manually.
	ModeProxy Mode = "proxy"
)

// ParseMode accepts the persisted names plus a dashed alias for system_proxy.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tun":
		return ModeTun, nil
	case "system_proxy", "system-proxy":
		return ModeSystemProxy, nil
	case "proxy", "socks":
		return ModeProxy, nil
	default:
		return "", fmt.Errorf("unknown tunnel mode %q (want tun, system_proxy or proxy)", s)
	}
}

// IsTun reports whether the mode creates a virtual network interface.
func (m Mode) IsTun() bool {
	return m == ModeTun
}

// SetsSystemProxy reports whether the desktop proxy settings are changed while connected.
func (m Mode) SetsSystemProxy() bool {
	return m == ModeSystemProxy
}

// NeedsElevation reports whether the client must run with root/administrator rights.
func (m Mode) NeedsElevation() bool {
	return m.IsTun()
}

// Label returns the short human-readable name.
func (m Mode) Label() string {
	switch m {
	case ModeTun:
		return "TUN"
	case ModeSystemProxy:
		return "System proxy"
	case ModeProxy:
		return "Proxy"
	default:
		return string(m)
	}
}

// DNSStrategy decides who overrides system DNS in TUN mode.
type DNSStrategy string

const (
	// DNSAuto lets the client manage DNS when systemd-resolved is active,
	// and the GUI's DNS backend otherwise.
	DNSAuto DNSStrategy = "auto"
	// DNSClient always sets change_system_dns and leaves DNS to the client.
	DNSClient DNSStrategy = "client"
	// DNSSystem always applies DNS through the GUI's DNS backend.
	DNSSystem DNSStrategy = "system"
)

// ParseDNSStrategy parses a persisted strategy name. Empty means auto.
func ParseDNSStrategy(s string) (DNSStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DNSAuto, nil
	case "client":
		return DNSClient, nil
	case "system":
		return DNSSystem, nil
	default:
		return "", fmt.Errorf("unknown DNS strategy %q (want auto, client or system)", s)
	}
}
