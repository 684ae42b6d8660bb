package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

const kdeProxyGroup = "Proxy Settings"

// kdeDesktops are XDG_CURRENT_DESKTOP entries that read kioslaverc.
var kdeDesktops = []string{"KDE", "Trinity"}

// KDE writes the KIO proxy settings in kioslaverc and asks running KIO
// workers to reload them.
type KDE struct {
	Runner system.Runner
	// Command is kwriteconfig5 or kwriteconfig6.
	Command string
	// ConfigFile is the kioslaverc path.
	ConfigFile string
	// Notify broadcasts the reparse signal. Nil or failing falls back to dbus-send.
	Notify func() error
}

// NewKDE picks the kwriteconfig generation from KDE_SESSION_VERSION.
func NewKDE(r system.Runner, sessionVersion string) *KDE {
	command := "kwriteconfig6"
	if sessionVersion == "5" {
		command = "kwriteconfig5"
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	return &KDE{
		Runner:     r,
		Command:    command,
		ConfigFile: filepath.Join(configDir, "kioslaverc"),
		Notify:     emitKIOReparse,
	}
}

func (k *KDE) Name() string { return "KDE KIO" }

func (k *KDE) Set(ctx context.Context, host string, port int) (string, error) {
	proxyURL := fmt.Sprintf("socks5://%s:%d", host, port)
	slog.Info("KDE: setting SOCKS5 proxy", "url", proxyURL, "kwriteconfig", k.Command, "file", k.ConfigFile)

	if !k.write(ctx, "ProxyType", "1") {
		return "", fmt.Errorf("KDE proxy update failed: %s could not write %s", k.Command, k.ConfigFile)
	}
	k.write(ctx, "socksProxy", proxyURL)
	for _, key := range []string{"httpProxy", "httpsProxy", "ftpProxy"} {
		k.write(ctx, key, "")
	}
	k.write(ctx, "NoProxyFor", strings.Join(NoProxyHosts, ","))

	k.notify(ctx)
	return fmt.Sprintf("System proxy configured via KDE KIO (SOCKS5 %s:%d)", host, port), nil
}

func (k *KDE) Clear(ctx context.Context) {
	k.write(ctx, "ProxyType", "0")
	k.notify(ctx)
	slog.Info("KDE proxy type reset to 0")
}

func (k *KDE) write(ctx context.Context, key, value string) bool {
	res := k.Runner.Run(ctx, k.Command, "--file", k.ConfigFile, "--group", kdeProxyGroup, "--key", key, value)
	return res.OK
}

func (k *KDE) notify(ctx context.Context) {
	if k.Notify != nil {
		err := k.Notify()
		if err == nil {
			return
		}
		slog.Debug("KIO reparse over session bus failed, using dbus-send", "error", err)
	}
	k.Runner.Run(ctx, "dbus-send", "--session", "--type=signal",
		kioSchedulerPath, kioSchedulerInterface+"."+kioReparseMember, "string:")
}
