package dns

import (
	"context"
	"fmt"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

// physicalAdapters selects Up adapters that are not tunnels or loopback.
const physicalAdapters = `Get-NetAdapter | Where-Object {$_.Status -eq 'Up' -and $_.InterfaceDescription -notlike '*TUN*' -and $_.InterfaceDescription -notlike '*TAP*' -and $_.InterfaceDescription -notlike '*Loopback*'}`

// ResetScript restores DHCP-provided DNS on every physical adapter.
const ResetScript = physicalAdapters + ` | ForEach-Object { Set-DnsClientServerAddress -InterfaceIndex $_.ifIndex -ResetServerAddresses }`

// PowerShellArgs precede the script in every invocation.
var PowerShellArgs = []string{"-NoProfile", "-NonInteractive", "-WindowStyle", "Hidden", "-Command"}

// PowerShell overrides DNS on physical adapters. It needs administrator rights.
type PowerShell struct {
	Runner system.Runner
}

func (d *PowerShell) Name() string { return "PowerShell" }

func (d *PowerShell) Set(ctx context.Context, servers []string) (string, error) {
	servers = orDefault(servers)
	quoted := make([]string, 0, len(servers))
	for _, s := range servers {
		quoted = append(quoted, "'"+strings.ReplaceAll(s, "'", "''")+"'")
	}
	script := physicalAdapters + ` | ForEach-Object { Set-DnsClientServerAddress -InterfaceIndex $_.ifIndex -ServerAddresses ` +
		strings.Join(quoted, ",") + ` }`

	if !d.Runner.Run(ctx, "powershell", append(append([]string(nil), PowerShellArgs...), script)...).OK {
		return "", fmt.Errorf("failed to set DNS via PowerShell (may require administrator privileges)")
	}
	return fmt.Sprintf("DNS configured via PowerShell (%s)", strings.Join(servers, ",")), nil
}

func (d *PowerShell) Clear(ctx context.Context) {
	ResetAdapters(ctx, d.Runner)
}

// ResetAdapters runs ResetScript.
func ResetAdapters(ctx context.Context, r system.Runner) bool {
	return r.Run(ctx, "powershell", append(append([]string(nil), PowerShellArgs...), ResetScript)...).OK
}
