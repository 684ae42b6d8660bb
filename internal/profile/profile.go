// Package profile loads and validates TrustTunnel endpoint credentials.
package profile

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPort is appended to endpoint addresses given without one.
const DefaultPort = "443"

// DefaultDNSUpstreams are used when a credential lists none.
var DefaultDNSUpstreams = []string{"tls://1.1.1.1", "tls://1.0.0.1"}

// ErrInvalidHost is wrapped by every hostname syntax error.
var ErrInvalidHost = errors.New("invalid host")

// Endpoint is a credential file: one VPN server plus the user's login.
type Endpoint struct {
	Hostname                 string   `toml:"hostname"`
	Addresses                []string `toml:"addresses"`
	HasIPv6                  bool     `toml:"has_ipv6"`
	Username                 string   `toml:"username"`
	Password                 string   `toml:"password"`
	SkipVerification         bool     `toml:"skip_verification"`
	Certificate              string   `toml:"certificate"`
	UpstreamProtocol         string   `toml:"upstream_protocol"`
	UpstreamFallbackProtocol string   `toml:"upstream_fallback_protocol"`
	AntiDPI                  bool     `toml:"anti_dpi"`
	KillswitchEnabled        bool     `toml:"killswitch_enabled"`
	PostQuantumGroupEnabled  *bool    `toml:"post_quantum_group_enabled"`
	DNSUpstreams             []string `toml:"dns_upstreams"`
}

// NewEndpoint returns an endpoint with the credential defaults applied.
func NewEndpoint() *Endpoint {
	pq := true
	return &Endpoint{
		PostQuantumGroupEnabled: &pq,
		DNSUpstreams:            append([]string(nil), DefaultDNSUpstreams...),
	}
}

// PostQuantumEnabled reports the post-quantum key exchange flag, which defaults to on.
func (e *Endpoint) PostQuantumEnabled() bool {
	return e.PostQuantumGroupEnabled == nil || *e.PostQuantumGroupEnabled
}

// Parse decodes a credential document.
func Parse(data []byte) (*Endpoint, error) {
	ep := NewEndpoint()
	if err := toml.Unmarshal(data, ep); err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	return ep, nil
}

// Marshal encodes the credential as TOML.
func (e *Endpoint) Marshal() ([]byte, error) {
	data, err := toml.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential: %w", err)
	}
	return data, nil
}

// FieldError describes a rejected user-supplied field.
type FieldError struct {
	Label  string
	Detail string
	Err    error
}

func (e *FieldError) Error() string {
	return e.Label + ": " + e.Detail
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidateFields checks the fields a connection attempt cannot proceed without.
// Checks run in a fixed order and the first failure is returned.
func (e *Endpoint) ValidateFields() error {
	if len(NormalizeAddresses(e.Addresses)) == 0 {
		return &FieldError{
			Label:  "Addresses required",
			Detail: "Enter at least one endpoint address (e.g. 78.141.223.149:443)",
		}
	}

	host := strings.TrimSpace(e.Hostname)
	if host == "" {
		return &FieldError{
			Label:  "Hostname is required",
			Detail: "Enter the endpoint hostname (e.g. vpn.example.com)",
		}
	}
	if err := validateHost(host); err != nil {
		return &FieldError{
			Label:  "Invalid hostname",
			Detail: strings.TrimPrefix(err.Error(), ErrInvalidHost.Error()+": "),
			Err:    err,
		}
	}

	if strings.TrimSpace(e.Username) == "" {
		return &FieldError{Label: "Username is required", Detail: "Enter your username"}
	}
	if e.Password == "" {
		return &FieldError{Label: "Password is required", Detail: "Enter your password"}
	}
	return nil
}

// SplitList splits entries on commas and whitespace, dropping empties.
func SplitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// NormalizeAddresses flattens comma or space separated entries and appends
// the default port to any address that lacks one.
func NormalizeAddresses(addresses []string) []string {
	var out []string
	for _, addr := range SplitList(strings.Join(addresses, ",")) {
		out = append(out, withDefaultPort(addr))
	}
	return out
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	trimmed := strings.Trim(addr, "[]")
	if ip := net.ParseIP(trimmed); ip != nil && ip.To4() == nil {
		return net.JoinHostPort(trimmed, DefaultPort)
	}
	if strings.Contains(addr, ":") {
		return addr
	}
	return addr + ":" + DefaultPort
}

// CredentialName is the display name of a credential: user@host, host,
// user, or the file stem, whichever is available first.
func CredentialName(e *Endpoint, path string) string {
	user := strings.TrimSpace(e.Username)
	host := strings.TrimSpace(e.Hostname)
	switch {
	case user != "" && host != "":
		return user + "@" + host
	case host != "":
		return host
	case user != "":
		return user
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "unknown"
	}
	return stem
}

// validateHost validates that the host is a safe hostname or IP address.
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidHost)
	}

	for _, r := range host {
		if r < 32 || r == 127 {
			return fmt.Errorf("%w: contains control characters", ErrInvalidHost)
		}
	}

	dangerousChars := []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "[", "]", "<", ">", "\\", "'", "\"", " ", "/", "@"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("%w: contains forbidden character %q", ErrInvalidHost, char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	// RFC 1123
	if len(host) > 253 {
		return fmt.Errorf("%w: hostname too long (max 253 characters)", ErrInvalidHost)
	}
	if strings.HasPrefix(host, "-") || strings.HasSuffix(host, "-") {
		return fmt.Errorf("%w: hostname cannot start or end with hyphen", ErrInvalidHost)
	}
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return fmt.Errorf("%w: hostname cannot start or end with dot", ErrInvalidHost)
	}

	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 {
			return fmt.Errorf("%w: empty label in hostname", ErrInvalidHost)
		}
		if len(label) > 63 {
			return fmt.Errorf("%w: label too long (max 63 characters)", ErrInvalidHost)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("%w: label cannot start or end with hyphen", ErrInvalidHost)
		}
		for _, r := range label {
			isLower := r >= 'a' && r <= 'z'
			isUpper := r >= 'A' && r <= 'Z'
			isDigit := r >= '0' && r <= '9'
			if !isLower && !isUpper && !isDigit && r != '-' {
				return fmt.Errorf("%w: invalid character %q in hostname", ErrInvalidHost, r)
			}
		}
	}

	return nil
}
