package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

const gsettingsSchema = "org.gnome.system.proxy"

// gnomeDesktops are XDG_CURRENT_DESKTOP entries that read GNOME proxy settings.
var gnomeDesktops = []string{"GNOME", "Unity", "Cinnamon", "X-Cinnamon", "MATE", "Budgie", "Pantheon"}

// GSettings configures the org.gnome.system.proxy schema.
type GSettings struct {
	Runner system.Runner
}

func (g *GSettings) Name() string { return "GSettings" }

func (g *GSettings) Set(ctx context.Context, host string, port int) (string, error) {
	slog.Info("GSettings: setting SOCKS5 proxy", "host", host, "port", port)

	writes := [][3]string{
		{gsettingsSchema + ".socks", "host", host},
		{gsettingsSchema + ".socks", "port", strconv.Itoa(port)},
	}
	for _, protocol := range []string{"http", "https", "ftp"} {
		writes = append(writes,
			[3]string{gsettingsSchema + "." + protocol, "host", ""},
			[3]string{gsettingsSchema + "." + protocol, "port", "0"})
	}
	writes = append(writes,
		[3]string{gsettingsSchema, "use-same-proxy", "false"},
		[3]string{gsettingsSchema, "mode", "manual"})

	var failed []string
	for _, w := range writes {
		if res := g.Runner.Run(ctx, "gsettings", "set", w[0], w[1], w[2]); !res.OK {
			failed = append(failed, w[0]+" "+w[1])
		}
	}

	slog.Info("GSettings verify",
		"mode", g.get(ctx, gsettingsSchema, "mode"),
		"socks_host", g.get(ctx, gsettingsSchema+".socks", "host"),
		"socks_port", g.get(ctx, gsettingsSchema+".socks", "port"),
		"use_same_proxy", g.get(ctx, gsettingsSchema, "use-same-proxy"))

	if len(failed) > 0 {
		return "", fmt.Errorf("GSettings proxy update failed (%s)", strings.Join(failed, ", "))
	}
	return fmt.Sprintf("System proxy configured via GSettings (SOCKS5 %s:%d)", host, port), nil
}

func (g *GSettings) Clear(ctx context.Context) {
	g.Runner.Run(ctx, "gsettings", "set", gsettingsSchema, "mode", "none")
	g.Runner.Run(ctx, "gsettings", "set", gsettingsSchema, "use-same-proxy", "true")
	slog.Info("GSettings proxy cleared", "mode", g.get(ctx, gsettingsSchema, "mode"))
}

// PointsAt reports whether the session proxy is in manual mode with its
// SOCKS entry set to host:port.
func (g *GSettings) PointsAt(ctx context.Context, host string, port int) bool {
	if unquote(g.get(ctx, gsettingsSchema, "mode")) != "manual" {
		return false
	}
	return unquote(g.get(ctx, gsettingsSchema+".socks", "host")) == host &&
		g.get(ctx, gsettingsSchema+".socks", "port") == strconv.Itoa(port)
}

func unquote(v string) string {
	return strings.Trim(v, "'\"")
}

func (g *GSettings) get(ctx context.Context, schema, key string) string {
	return strings.TrimSpace(g.Runner.Run(ctx, "gsettings", "get", schema, key).Stdout)
}
