package profile

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEndpoint() *Endpoint {
	ep := NewEndpoint()
	ep.Hostname = "vpn.example.com"
	ep.Addresses = []string{"78.141.223.149:443"}
	ep.Username = "alice"
	ep.Password = "secret"
	return ep
}

func TestNewEndpoint(t *testing.T) {
	ep := NewEndpoint()

	assert.True(t, ep.PostQuantumEnabled())
	assert.Equal(t, []string{"tls://1.1.1.1", "tls://1.0.0.1"}, ep.DNSUpstreams)
	assert.False(t, ep.KillswitchEnabled)
}

func TestParse(t *testing.T) {
	t.Run("applies defaults for missing keys", func(t *testing.T) {
		ep, err := Parse([]byte(`
hostname = "vpn.example.com"
addresses = ["1.2.3.4:443"]
username = "bob"
password = "pw"
`))
		require.NoError(t, err)
		assert.Equal(t, "vpn.example.com", ep.Hostname)
		assert.Equal(t, []string{"1.2.3.4:443"}, ep.Addresses)
		assert.True(t, ep.PostQuantumEnabled())
		assert.Equal(t, DefaultDNSUpstreams, ep.DNSUpstreams)
	})

	t.Run("explicit values win", func(t *testing.T) {
		ep, err := Parse([]byte(`
post_quantum_group_enabled = false
dns_upstreams = ["8.8.8.8"]
anti_dpi = true
upstream_protocol = "http3"
`))
		require.NoError(t, err)
		assert.False(t, ep.PostQuantumEnabled())
		assert.Equal(t, []string{"8.8.8.8"}, ep.DNSUpstreams)
		assert.True(t, ep.AntiDPI)
		assert.Equal(t, "http3", ep.UpstreamProtocol)
	})

	t.Run("rejects malformed TOML", func(t *testing.T) {
		_, err := Parse([]byte("hostname = "))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse credential")
	})
}

func TestEndpoint_ValidateFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *Endpoint)
		wantLabel string
	}{
		{name: "valid endpoint", mutate: func(e *Endpoint) {}},
		{name: "valid IP hostname", mutate: func(e *Endpoint) { e.Hostname = "10.0.0.1" }},
		{name: "no addresses", mutate: func(e *Endpoint) { e.Addresses = nil }, wantLabel: "Addresses required"},
		{name: "only separators", mutate: func(e *Endpoint) { e.Addresses = []string{" , "} }, wantLabel: "Addresses required"},
		{name: "empty hostname", mutate: func(e *Endpoint) { e.Hostname = "  " }, wantLabel: "Hostname is required"},
		{name: "hostname with shell chars", mutate: func(e *Endpoint) { e.Hostname = "vpn;rm" }, wantLabel: "Invalid hostname"},
		{name: "hostname with leading hyphen", mutate: func(e *Endpoint) { e.Hostname = "-vpn.example.com" }, wantLabel: "Invalid hostname"},
		{name: "empty username", mutate: func(e *Endpoint) { e.Username = "" }, wantLabel: "Username is required"},
		{name: "empty password", mutate: func(e *Endpoint) { e.Password = "" }, wantLabel: "Password is required"},
		{
			name: "addresses checked before hostname",
			mutate: func(e *Endpoint) {
				e.Addresses = nil
				e.Hostname = ""
				e.Password = ""
			},
			wantLabel: "Addresses required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := validEndpoint()
			tt.mutate(ep)
			err := ep.ValidateFields()
			if tt.wantLabel == "" {
				require.NoError(t, err)
				return
			}
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantLabel, fe.Label)
			assert.NotEmpty(t, fe.Detail)
		})
	}
}

func TestEndpoint_ValidateFields_InvalidHostWrapsSentinel(t *testing.T) {
	ep := validEndpoint()
	ep.Hostname = "bad..host"

	err := ep.ValidateFields()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidHost))
	assert.Equal(t, "Invalid hostname: empty label in hostname", err.Error())
}

func TestValidateHost(t *testing.T) {
	valid := []string{"example.com", "a.b-c.d", "localhost", "192.168.1.1", "2001:db8::1"}
	for _, h := range valid {
		assert.NoError(t, validateHost(h), h)
	}

	invalid := []string{
		"",
		"host name",
		"host\x00",
		"host.",
		".host",
		"host-",
		"a_b.com",
		"user@host",
		strings.Repeat("a", 64) + ".com",
		strings.Repeat("a.", 127) + "com",
	}
	for _, h := range invalid {
		assert.ErrorIs(t, validateHost(h), ErrInvalidHost, h)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList("a, b  c"))
	assert.Equal(t, []string{"x"}, SplitList(",x,\n"))
	assert.Empty(t, SplitList(" , "))
}

func TestNormalizeAddresses(t *testing.T) {
	got := NormalizeAddresses([]string{
		"1.2.3.4",
		"5.6.7.8:8443, vpn.example.com",
		"[2001:db8::1]",
		"2001:db8::2",
		"[2001:db8::3]:444",
	})
	assert.Equal(t, []string{
		"1.2.3.4:443",
		"5.6.7.8:8443",
		"vpn.example.com:443",
		"[2001:db8::1]:443",
		"[2001:db8::2]:443",
		"[2001:db8::3]:444",
	}, got)
	assert.Empty(t, NormalizeAddresses(nil))
}

func TestCredentialName(t *testing.T) {
	tests := []struct {
		user, host, path, want string
	}{
		{"alice", "vpn.example.com", "/x/y.toml", "alice@vpn.example.com"},
		{"", "vpn.example.com", "/x/y.toml", "vpn.example.com"},
		{"alice", "", "/x/y.toml", "alice"},
		{"", "", "/x/office.toml", "office"},
		{"", "", "", "unknown"},
	}
	for _, tt := range tests {
		ep := &Endpoint{Username: tt.user, Hostname: tt.host}
		assert.Equal(t, tt.want, CredentialName(ep, tt.path))
	}
}
