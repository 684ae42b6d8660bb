package clientconfig

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/trusttunnel-gui/internal/profile"
)

func testEndpoint() *profile.Endpoint {
	ep := profile.NewEndpoint()
	ep.Hostname = "vpn.example.com"
	ep.Addresses = []string{"78.141.223.149", "vpn.example.com:8443", "[2001:db8::7]:443"}
	ep.Username = "alice"
	ep.Password = "s3cret"
	return ep
}

func TestBuild_Tun(t *testing.T) {
	cfg := Build(testEndpoint(), ModeTun, BuildOptions{DNSEnabled: true, DelegateDNS: true})

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "general", cfg.VPNMode)
	assert.True(t, cfg.PostQuantumGroupEnabled)
	assert.Equal(t, []string{"tls://1.1.1.1", "tls://1.0.0.1"}, cfg.DNSUpstreams)
	assert.Equal(t, DefaultUpstreamProtocol, cfg.Endpoint.UpstreamProtocol)
	assert.Equal(t, []string{"78.141.223.149:443", "vpn.example.com:8443", "[2001:db8::7]:443"}, cfg.Endpoint.Addresses)

	require.NotNil(t, cfg.Listener.Tun)
	assert.Nil(t, cfg.Listener.Socks)
	assert.Equal(t, DefaultIncludedRoutes, cfg.Listener.Tun.IncludedRoutes)
	assert.Equal(t, DefaultMTU, cfg.Listener.Tun.MTUSize)
	assert.True(t, cfg.Listener.Tun.ChangeSystemDNS)

	excluded := cfg.Listener.Tun.ExcludedRoutes
	assert.Subset(t, excluded, DefaultExcludedRoutes)
	assert.Contains(t, excluded, "78.141.223.149/32")
	assert.Contains(t, excluded, "2001:db8::7/128")
	assert.Len(t, excluded, len(DefaultExcludedRoutes)+2)
}

func TestBuild_TunDNSNotDelegated(t *testing.T) {
	tests := []struct {
		name string
		opts BuildOptions
	}{
		{name: "dns disabled", opts: BuildOptions{DNSEnabled: false, DelegateDNS: true}},
		{name: "dns handled by gui", opts: BuildOptions{DNSEnabled: true, DelegateDNS: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Build(testEndpoint(), ModeTun, tt.opts)
			require.NotNil(t, cfg.Listener.Tun)
			assert.False(t, cfg.Listener.Tun.ChangeSystemDNS)
		})
	}
}

func TestBuild_ProxyModes(t *testing.T) {
	for _, mode := range []Mode{ModeSystemProxy, ModeProxy} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := Build(testEndpoint(), mode, BuildOptions{DNSEnabled: true})
			assert.Nil(t, cfg.Listener.Tun)
			require.NotNil(t, cfg.Listener.Socks)
			assert.Equal(t, ProxyListenAddress, cfg.Listener.Socks.Address)
		})
	}
}

func TestBuild_DuplicateHostRoutes(t *testing.T) {
	ep := testEndpoint()
	ep.Addresses = []string{"10.0.0.1:443", "10.0.0.1:8443"}

	cfg := Build(ep, ModeTun, BuildOptions{})
	count := 0
	for _, r := range cfg.Listener.Tun.ExcludedRoutes {
		if r == "10.0.0.1/32" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuild_CredentialOverrides(t *testing.T) {
	ep := testEndpoint()
	pq := false
	ep.PostQuantumGroupEnabled = &pq
	ep.DNSUpstreams = []string{"8.8.8.8, 9.9.9.9"}
	ep.UpstreamProtocol = "http3"
	ep.UpstreamFallbackProtocol = "http2"
	ep.KillswitchEnabled = true

	cfg := Build(ep, ModeTun, BuildOptions{})
	assert.False(t, cfg.PostQuantumGroupEnabled)
	assert.Equal(t, []string{"8.8.8.8", "9.9.9.9"}, cfg.DNSUpstreams)
	assert.Equal(t, "http3", cfg.Endpoint.UpstreamProtocol)
	assert.Equal(t, "http2", cfg.Endpoint.UpstreamFallbackProtocol)
	assert.True(t, cfg.KillswitchEnabled)
}

func TestBuild_EmptyUpstreamsFallBack(t *testing.T) {
	ep := testEndpoint()
	ep.DNSUpstreams = nil

	cfg := Build(ep, ModeProxy, BuildOptions{})
	assert.Equal(t, profile.DefaultDNSUpstreams, cfg.DNSUpstreams)
}

func TestConfiguration_Marshal(t *testing.T) {
	data, err := Build(testEndpoint(), ModeTun, BuildOptions{DNSEnabled: true}).Marshal()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, toml.Unmarshal(data, &doc))

	assert.Equal(t, "info", doc["loglevel"])
	assert.Equal(t, "general", doc["vpn_mode"])
	assert.Contains(t, doc, "killswitch_allow_ports")
	assert.Contains(t, doc, "exclusions")

	endpoint, ok := doc["endpoint"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vpn.example.com", endpoint["hostname"])
	assert.NotContains(t, endpoint, "client_random")
	assert.NotContains(t, endpoint, "certificate")
	assert.NotContains(t, endpoint, "upstream_fallback_protocol")

	listener, ok := doc["listener"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, listener, "tun")
	assert.NotContains(t, listener, "socks")

	tun := listener["tun"].(map[string]any)
	assert.NotContains(t, tun, "bound_if")
	assert.Equal(t, int64(1280), tun["mtu_size"])
	assert.Equal(t, false, tun["change_system_dns"])
}

func TestConfiguration_MarshalProxy(t *testing.T) {
	data, err := Build(testEndpoint(), ModeProxy, BuildOptions{}).Marshal()
	require.NoError(t, err)

	var cfg Configuration
	require.NoError(t, toml.Unmarshal(data, &cfg))
	assert.Nil(t, cfg.Listener.Tun)
	require.NotNil(t, cfg.Listener.Socks)
	assert.Equal(t, "127.0.0.1:1080", cfg.Listener.Socks.Address)
	assert.Equal(t, "s3cret", cfg.Endpoint.Password)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "double quoted", in: `password = "abc"`, want: `password = "***"`},
		{name: "single quoted", in: `password = 'abcd'`, want: `password = "****"`},
		{name: "indented", in: `  password = "x"`, want: `  password = "*"`},
		{name: "empty", in: `password = ""`, want: `password = ""`},
		{name: "other keys untouched", in: `username = "bob"`, want: `username = "bob"`},
		{name: "password-like key untouched", in: `password_hint = "x"`, want: `password_hint = "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.in))
		})
	}
}

func TestRedact_RenderedConfiguration(t *testing.T) {
	data, err := Build(testEndpoint(), ModeTun, BuildOptions{}).Marshal()
	require.NoError(t, err)

	redacted := Redact(string(data))
	assert.NotContains(t, redacted, "s3cret")
	assert.Contains(t, redacted, `"******"`)
	assert.Contains(t, redacted, "alice")
}
