//go:build windows

package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const internetSettingsKey = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`

const (
	internetOptionRefresh         = 37
	internetOptionSettingsChanged = 39
)

// proxyOverride is the Windows form of NoProxyHosts.
const proxyOverride = "localhost;127.*;10.*;172.16.*;192.168.*;<local>"

var (
	wininet                = windows.NewLazySystemDLL("wininet.dll")
	procInternetSetOptionW = wininet.NewProc("InternetSetOptionW")
)

// Registry configures the per-user WinINet proxy settings.
type Registry struct{}

func (Registry) Name() string { return "Windows Registry" }

func (Registry) Set(_ context.Context, host string, port int) (string, error) {
	slog.Info("Setting system SOCKS5 proxy", "host", host, "port", port)

	key, _, err := registry.CreateKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE|registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("failed to open registry key: %w", err)
	}
	defer func() { _ = key.Close() }()

	var errs []error
	if err := key.SetDWordValue("ProxyEnable", 1); err != nil {
		errs = append(errs, fmt.Errorf("ProxyEnable: %w", err))
	}
	if err := key.SetStringValue("ProxyServer", fmt.Sprintf("socks=%s:%d", host, port)); err != nil {
		errs = append(errs, fmt.Errorf("ProxyServer: %w", err))
	}
	if err := key.SetStringValue("ProxyOverride", proxyOverride); err != nil {
		errs = append(errs, fmt.Errorf("ProxyOverride: %w", err))
	}
	notifySettingsChanged()

	enabled, _, _ := key.GetIntegerValue("ProxyEnable")
	server, _, _ := key.GetStringValue("ProxyServer")
	slog.Info("Registry verify", "ProxyEnable", enabled, "ProxyServer", server)

	if err := errors.Join(errs...); err != nil {
		return "", fmt.Errorf("registry proxy update failed: %w", err)
	}
	return fmt.Sprintf("System proxy configured via registry (SOCKS5 %s:%d)", host, port), nil
}

func (Registry) Clear(context.Context) {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE|registry.QUERY_VALUE)
	if err != nil {
		slog.Warn("Failed to open registry key", "error", err)
		return
	}
	defer func() { _ = key.Close() }()

	if err := key.SetDWordValue("ProxyEnable", 0); err != nil {
		slog.Warn("Failed to reset ProxyEnable", "error", err)
	}
	_ = key.DeleteValue("ProxyServer")
	_ = key.DeleteValue("ProxyOverride")
	notifySettingsChanged()
	slog.Info("System proxy cleared")
}

func notifySettingsChanged() {
	if err := procInternetSetOptionW.Find(); err != nil {
		slog.Debug("wininet unavailable", "error", err)
		return
	}
	_, _, _ = procInternetSetOptionW.Call(0, internetOptionSettingsChanged, 0, 0)
	_, _, _ = procInternetSetOptionW.Call(0, internetOptionRefresh, 0, 0)
}
