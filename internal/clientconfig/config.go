package clientconfig

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/shini4i/trusttunnel-gui/internal/profile"
)

// ProxyListenAddress is the loopback SOCKS listener used by the proxy modes.
const ProxyListenAddress = "127.0.0.1:1080"

const (
	// DefaultMTU is the TUN interface MTU.
	DefaultMTU = 1280
	// DefaultUpstreamProtocol is used when the credential leaves it empty.
	DefaultUpstreamProtocol = "http2"
)

// DefaultIncludedRoutes send all IPv4 and global IPv6 traffic into the tunnel.
var DefaultIncludedRoutes = []string{"0.0.0.0/0", "2000::/3"}

// DefaultExcludedRoutes keep local, private and multicast ranges off the tunnel.
var DefaultExcludedRoutes = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"224.0.0.0/3",
}

// Configuration is the document passed to the client with -c.
type Configuration struct {
	LogLevel                string   `toml:"loglevel"`
	VPNMode                 string   `toml:"vpn_mode"`
	KillswitchEnabled       bool     `toml:"killswitch_enabled"`
	KillswitchAllowPorts    []uint16 `toml:"killswitch_allow_ports"`
	PostQuantumGroupEnabled bool     `toml:"post_quantum_group_enabled"`
	Exclusions              []string `toml:"exclusions"`
	DNSUpstreams            []string `toml:"dns_upstreams"`
	Endpoint                Endpoint `toml:"endpoint"`
	Listener                Listener `toml:"listener"`
}

// Endpoint is the [endpoint] table.
type Endpoint struct {
	Hostname                 string   `toml:"hostname"`
	Addresses                []string `toml:"addresses"`
	HasIPv6                  bool     `toml:"has_ipv6"`
	Username                 string   `toml:"username"`
	Password                 string   `toml:"password"`
	ClientRandom             string   `toml:"client_random,omitempty"`
	SkipVerification         bool     `toml:"skip_verification"`
	Certificate              string   `toml:"certificate,omitempty"`
	UpstreamProtocol         string   `toml:"upstream_protocol"`
	UpstreamFallbackProtocol string   `toml:"upstream_fallback_protocol,omitempty"`
	AntiDPI                  bool     `toml:"anti_dpi"`
}

// Listener holds exactly one of Tun or Socks.
type Listener struct {
	Tun   *Tun   `toml:"tun,omitempty"`
	Socks *Socks `toml:"socks,omitempty"`
}

// Tun is the [listener.tun] table.
type Tun struct {
	BoundInterface  string   `toml:"bound_if,omitempty"`
	IncludedRoutes  []string `toml:"included_routes"`
	ExcludedRoutes  []string `toml:"excluded_routes"`
	MTUSize         int      `toml:"mtu_size"`
	ChangeSystemDNS bool     `toml:"change_system_dns"`
}

// Socks is the [listener.socks] table.
type Socks struct {
	Address string `toml:"address"`
}

// BuildOptions carries the session choices that are not part of the credential.
type BuildOptions struct {
	DNSEnabled bool
	// DelegateDNS sets change_system_dns so the client manages resolver state itself.
	DelegateDNS bool
}

// Build merges a credential with the mode-specific listener.
// Endpoint IP literals are excluded from the tunnel so the transport
// connection itself is not routed into it.
func Build(ep *profile.Endpoint, mode Mode, opts BuildOptions) *Configuration {
	addresses := profile.NormalizeAddresses(ep.Addresses)

	upstream := ep.UpstreamProtocol
	if upstream == "" {
		upstream = DefaultUpstreamProtocol
	}

	upstreams := profile.SplitList(strings.Join(ep.DNSUpstreams, ","))
	if len(upstreams) == 0 {
		upstreams = append([]string(nil), profile.DefaultDNSUpstreams...)
	}

	cfg := &Configuration{
		LogLevel:                "info",
		VPNMode:                 "general",
		KillswitchEnabled:       ep.KillswitchEnabled,
		KillswitchAllowPorts:    []uint16{},
		PostQuantumGroupEnabled: ep.PostQuantumEnabled(),
		Exclusions:              []string{},
		DNSUpstreams:            upstreams,
		Endpoint: Endpoint{
			Hostname:                 strings.TrimSpace(ep.Hostname),
			Addresses:                addresses,
			HasIPv6:                  ep.HasIPv6,
			Username:                 strings.TrimSpace(ep.Username),
			Password:                 ep.Password,
			SkipVerification:         ep.SkipVerification,
			Certificate:              strings.TrimSpace(ep.Certificate),
			UpstreamProtocol:         upstream,
			UpstreamFallbackProtocol: ep.UpstreamFallbackProtocol,
			AntiDPI:                  ep.AntiDPI,
		},
	}

	if mode.IsTun() {
		excluded := append([]string(nil), DefaultExcludedRoutes...)
		for _, route := range hostRoutes(addresses) {
			if !contains(excluded, route) {
				excluded = append(excluded, route)
			}
		}
		cfg.Listener.Tun = &Tun{
			IncludedRoutes:  append([]string(nil), DefaultIncludedRoutes...),
			ExcludedRoutes:  excluded,
			MTUSize:         DefaultMTU,
			ChangeSystemDNS: opts.DNSEnabled && opts.DelegateDNS,
		}
	} else {
		cfg.Listener.Socks = &Socks{Address: ProxyListenAddress}
	}

	slog.Debug("Built client configuration",
		"mode", mode,
		"hostname", cfg.Endpoint.Hostname,
		"addresses", addresses,
		"upstream", upstream,
		"fallback", ep.UpstreamFallbackProtocol,
		"skip_verification", ep.SkipVerification,
		"anti_dpi", ep.AntiDPI)
	return cfg
}

// Marshal renders the configuration as TOML.
func (c *Configuration) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal client configuration: %w", err)
	}
	return data, nil
}

// hostRoutes returns a /32 or /128 route for every address whose host is an IP literal.
func hostRoutes(addresses []string) []string {
	var routes []string
	for _, addr := range addresses {
		host := addr
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		}
		ip := net.ParseIP(strings.Trim(host, "[]"))
		if ip == nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			routes = append(routes, v4.String()+"/32")
		} else {
			routes = append(routes, ip.String()+"/128")
		}
	}
	return routes
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
