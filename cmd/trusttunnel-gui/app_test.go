package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/trusttunnel-gui/internal/config"
	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/instance"
	"github.com/shini4i/trusttunnel-gui/internal/profile"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

// missingClient is a platform without the client installed.
type missingClient struct{}

func (missingClient) FindClientBinary(string) (string, bool) { return "", false }
func (missingClient) CheckTunDevice() bool { return true }
func (missingClient) CheckElevation() bool { return true }
func (missingClient) CheckBinaryWorks(context.Context, string, bool) error { return nil }
func (missingClient) Terminate(context.Context, vpn.Child) error { return nil }
func (missingClient) ForceKill(context.Context, vpn.Child) error { return nil }
func (missingClient) ProxyBackends(context.Context) []proxy.Backend { return nil }
func (missingClient) DNSBackend(context.Context) dns.Backend { return nil }
func (missingClient) ClientManagesDNS(context.Context) bool { return false }
func (missingClient) StartupCleanup(context.Context) {}
func (missingClient) EmergencyCleanup(context.Context) {}
func (missingClient) Spawn(context.Context, string, string, bool) (vpn.Child, error) {
	return nil, os.ErrNotExist
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	controller := vpn.NewController(missingClient{}, vpn.Options{
		ConfigPath:   filepath.Join(dir, "client.toml"),
		LogsDir:      filepath.Join(dir, "logs"),
		PollThrottle: 1,
	})

	ep := profile.NewEndpoint()
	ep.Hostname = "vpn.example.com"
	ep.Addresses = []string{"203.0.113.10:443"}
	ep.Username = "alice"
	ep.Password = "secret"
	cred := &profile.Credential{Path: filepath.Join(dir, "work.toml"), Name: "alice@vpn.example.com", Endpoint: ep}

	a := newApp(context.Background(), controller, cred, config.DefaultConfig())
	t.Cleanup(a.cancel)
	return a
}

func TestHandleRequestStatus(t *testing.T) {
	a := newTestApp(t)

	resp := a.handleRequest(&instance.Request{ID: "1", Command: instance.CommandStatus})
	require.True(t, resp.Success)

	status, err := resp.DecodeStatus()
	require.NoError(t, err)
	assert.Equal(t, "Disconnected", status.State)
	assert.Equal(t, "alice@vpn.example.com", status.Credential)
	assert.Equal(t, "tun", status.Mode)
	assert.Equal(t, os.Getpid(), status.PID)
}

func TestHandleRequestDisconnectWhenIdle(t *testing.T) {
	a := newTestApp(t)

	resp := a.handleRequest(&instance.Request{ID: "2", Command: instance.CommandDisconnect})
	assert.False(t, resp.Success)
	assert.Equal(t, instance.ErrCodeInvalidState, resp.Error.Code)
}

func TestHandleRequestConnectFailure(t *testing.T) {
	a := newTestApp(t)

	resp := a.handleRequest(&instance.Request{ID: "3", Command: instance.CommandConnect})
	assert.False(t, resp.Success)
	assert.Equal(t, instance.ErrCodeFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Client binary not found")

	state := a.controller.State()
	assert.Equal(t, vpn.PhaseError, state.Phase)
	assert.Equal(t, exitFailed, a.result())
}

func TestHandleRequestUnknown(t *testing.T) {
	a := newTestApp(t)

	resp := a.handleRequest(&instance.Request{ID: "4", Command: "reboot"})
	assert.False(t, resp.Success)
	assert.Equal(t, instance.ErrCodeInvalidCommand, resp.Error.Code)
}

func TestHandleRequestQuit(t *testing.T) {
	a := newTestApp(t)

	resp := a.handleRequest(&instance.Request{ID: "5", Command: instance.CommandQuit})
	assert.True(t, resp.Success)

	select {
	case <-a.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("quit did not cancel the app context")
	}
}

func TestHeadlessLoopExitsAfterFailure(t *testing.T) {
	a := newTestApp(t)
	require.Error(t, a.connect())

	code := a.loop(make(chan os.Signal), 5*time.Millisecond, true)
	assert.Equal(t, exitFailed, code)
}

func TestLoopStopsOnSignal(t *testing.T) {
	emergency.Reset()
	t.Cleanup(emergency.Reset)
	hookRuns := 0
	emergency.Register("marker", func(context.Context) { hookRuns++ })

	a := newTestApp(t)
	signals := make(chan os.Signal, 1)
	signals <- os.Interrupt

	code := a.loop(signals, time.Hour, false)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, 1, hookRuns, "a termination signal must run the emergency hooks")
}

func TestLoopQuitSkipsEmergencyHooks(t *testing.T) {
	emergency.Reset()
	t.Cleanup(emergency.Reset)
	hookRuns := 0
	emergency.Register("marker", func(context.Context) { hookRuns++ })

	a := newTestApp(t)
	a.quit()

	a.loop(make(chan os.Signal), time.Hour, false)
	assert.Zero(t, hookRuns)
}

func TestLoopStopsOnQuit(t *testing.T) {
	a := newTestApp(t)
	a.quit()

	code := a.loop(make(chan os.Signal), time.Hour, false)
	assert.Equal(t, exitOK, code)
}

func TestModeSummary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   string
	}{
		{name: "tun with auto dns", mutate: func(*config.Config) {}, want: "TUN, DNS auto"},
		{name: "tun with dns off", mutate: func(c *config.Config) { c.DNSEnabled = false }, want: "TUN, DNS unchanged"},
		{name: "tun with system dns", mutate: func(c *config.Config) { c.DNSStrategy = "system" }, want: "TUN, DNS system"},
		{name: "proxy", mutate: func(c *config.Config) { c.TunnelMode = "proxy" }, want: "Proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Equal(t, tt.want, modeSummary(cfg))
		})
	}
}

func writeCredential(t *testing.T, dir, file, user, host string) {
	t.Helper()
	content := "hostname = \"" + host + "\"\naddresses = [\"203.0.113.10:443\"]\nusername = \"" + user + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o600))
}

func TestSelectCredential(t *testing.T) {
	dir := t.TempDir()
	store, err := profile.NewStore(dir)
	require.NoError(t, err)

	_, err = selectCredential(store, "", "")
	assert.ErrorIs(t, err, profile.ErrStoreNotFound)

	writeCredential(t, dir, "work.toml", "alice", "vpn.example.com")
	cred, err := selectCredential(store, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@vpn.example.com", cred.Name)

	writeCredential(t, dir, "home.toml", "bob", "home.example.net")
	_, err = selectCredential(store, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--profile")

	cred, err = selectCredential(store, "", "bob@home.example.net")
	require.NoError(t, err)
	assert.Equal(t, "bob@home.example.net", cred.Name)

	cred, err = selectCredential(store, "work", "bob@home.example.net")
	require.NoError(t, err)
	assert.Equal(t, "alice@vpn.example.com", cred.Name)

	_, err = selectCredential(store, "missing", "")
	assert.ErrorIs(t, err, profile.ErrStoreNotFound)
}
