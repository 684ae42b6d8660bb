package vpn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
)

// InstallURL is where users get the TrustTunnel client.
const InstallURL = "https://github.com/TrustTunnel/TrustTunnelClient"

// ErrBusy is returned by Connect while a connection attempt or disconnect is in flight.
var ErrBusy = errors.New("connection is busy")

// StatusError is a user-facing failure. Label becomes the error state
// reason and Detail the remediation text.
type StatusError struct {
	Label  string
	Detail string
	Err    error
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Label
	}
	return e.Label + ": " + e.Detail
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func binaryNotFound(binary string) *StatusError {
	return &StatusError{
		Label: "Client binary not found",
		Detail: fmt.Sprintf("Could not find '%s' in PATH or standard locations.\n\n"+
			"Install the TrustTunnel client:\n  %s", binary, InstallURL),
	}
}

func tunUnavailable() *StatusError {
	return &StatusError{
		Label:  "TUN device not available",
		Detail: tunRemediation,
	}
}

func elevationUnavailable() *StatusError {
	return &StatusError{
		Label:  "pkexec not found",
		Detail: elevationRemediation,
	}
}

func spawnFailed(err error) *StatusError {
	return &StatusError{
		Label: "Failed to start client",
		Detail: fmt.Sprintf("Could not start TrustTunnel client: %v\n\n"+
			"Install the TrustTunnel client:\n  %s", err, InstallURL),
		Err: err,
	}
}

// exitDetail explains a non-zero client exit.
func exitDetail(status ExitStatus, binary string) string {
	switch status.Code {
	case ExitElevationDismissed:
		return elevationDismissedDetail
	case ExitNotFound:
		return fmt.Sprintf("Binary '%s' not found. Install TrustTunnel client:\n  %s", binary, InstallURL)
	}
	return fmt.Sprintf("Client exited with code %s", status.CodeLabel())
}

// connectedDetail is the status text shown once the tunnel is up.
// extra carries backend results: the DNS line in TUN mode, the proxy
// detail in system proxy mode.
func connectedDetail(mode clientconfig.Mode, extra string) string {
	listen := clientconfig.ProxyListenAddress
	switch mode {
	case clientconfig.ModeTun:
		lines := []string{"TUN tunnel active (system-wide)"}
		if extra != "" {
			lines = append(lines, extra)
		}
		return strings.Join(lines, "\n")
	case clientconfig.ModeSystemProxy:
		lines := []string{
			"System proxy active — all apps route through VPN",
			"SOCKS5 on " + listen,
		}
		if extra != "" {
			lines = append(lines, extra)
		}
		lines = append(lines, "Proxy will be restored on disconnect or quit")
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("SOCKS5 proxy on %s\n"+
			"Terminal: export ALL_PROXY=\"socks5://%s\"\n"+
			"Firefox: Settings → Network → SOCKS5 Host: 127.0.0.1  Port: 1080\n"+
			"Chromium: --proxy-server=\"socks5://%s\"", listen, listen, listen)
	}
}
