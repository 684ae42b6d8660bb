// Package ui hosts the system tray icon and desktop notifications.
package ui

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"fyne.io/systray"

	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/stats"
	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

const appTitle = "TrustTunnel"

var (
	// ErrTrayAlreadyRunning is returned when attempting to modify callbacks after Run() has been called.
	ErrTrayAlreadyRunning = errors.New("cannot modify callbacks after TrayIcon.Run() is called")
	// ErrTrayRunTwice is returned when Run() is called more than once.
	ErrTrayRunTwice = errors.New("TrayIcon.Run() called twice")
	// ErrTrayMissingCallbacks is returned when Run() is called without all required callbacks set.
	ErrTrayMissingCallbacks = errors.New("all callbacks (OnConnect, OnDisconnect, OnQuit) must be set before calling Run()")
)

// trayView is everything the menu shows for one state.
type trayView struct {
	icon              []byte
	tooltip           string
	status            string
	detail            string
	connectTitle      string
	connectEnabled    bool
	disconnectEnabled bool
	showTraffic       bool
}

// buildView derives the menu contents from the controller state.
func buildView(state vpn.ConnectionState, detail, credential string, tun bool) trayView {
	v := trayView{
		icon:              iconFor(state.Phase),
		status:            "Status: " + state.String(),
		detail:            firstLine(detail),
		connectTitle:      "Connect",
		connectEnabled:    state.CanConnect(),
		disconnectEnabled: state.CanDisconnect(),
		showTraffic:       state.IsConnected() && tun,
	}
	if state.IsConnected() && credential != "" {
		v.status = "Status: Connected to " + credential
	}
	if v.connectEnabled && credential != "" {
		v.connectTitle = "Connect (" + credential + ")"
	}
	v.tooltip = appTitle + " - " + state.String()
	if v.detail != "" {
		v.tooltip += "\n" + detail
	}
	return v
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// TrayIcon manages the system tray icon and menu.
type TrayIcon struct {
	mu sync.RWMutex

	state      vpn.ConnectionState
	detail     string
	credential string
	tun        bool

	menuStatus      *systray.MenuItem
	menuDetail      *systray.MenuItem
	menuTrafficRate *systray.MenuItem
	menuConnect     *systray.MenuItem
	menuDisconnect  *systray.MenuItem
	menuQuit        *systray.MenuItem

	// Callbacks - must be set before Run() is called
	onConnect    func()
	onDisconnect func()
	onQuit       func()

	done chan struct{}

	running   bool
	closeOnce sync.Once
}

// NewTrayIcon creates a new system tray icon manager.
func NewTrayIcon() *TrayIcon {
	return &TrayIcon{
		state: vpn.ConnectionState{Phase: vpn.PhaseDisconnected},
		done:  make(chan struct{}),
	}
}

// OnConnect registers a callback for when Connect is clicked in tray.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnConnect(callback func()) error {
	return t.setCallback(&t.onConnect, callback)
}

// OnDisconnect registers a callback for when Disconnect is clicked in tray.
func (t *TrayIcon) OnDisconnect(callback func()) error {
	return t.setCallback(&t.onDisconnect, callback)
}

// OnQuit registers a callback for when Quit is clicked in tray.
func (t *TrayIcon) OnQuit(callback func()) error {
	return t.setCallback(&t.onQuit, callback)
}

func (t *TrayIcon) setCallback(slot *func(), callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	*slot = callback
	return nil
}

// SetSession sets the credential name shown in the menu and whether the
// session runs in TUN mode, which enables the traffic line.
func (t *TrayIcon) SetSession(credential string, tun bool) {
	t.mu.Lock()
	t.credential = credential
	t.tun = tun
	t.mu.Unlock()
	t.refresh()
}

// SetStatus updates the icon and menu for a controller status.
func (t *TrayIcon) SetStatus(status vpn.Status) {
	t.mu.Lock()
	t.state = status.State
	t.detail = status.Detail
	t.mu.Unlock()
	t.refresh()
}

// SetTraffic updates the traffic line.
func (t *TrayIcon) SetTraffic(s stats.Traffic) {
	t.mu.RLock()
	item := t.menuTrafficRate
	t.mu.RUnlock()
	if item == nil {
		return
	}
	item.SetTitle(stats.Summary(s))
}

// Run starts the system tray icon and blocks until Quit.
// Returns ErrTrayMissingCallbacks if any callback is not set.
// Returns ErrTrayRunTwice if called more than once.
func (t *TrayIcon) Run() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrTrayRunTwice
	}
	if t.onConnect == nil || t.onDisconnect == nil || t.onQuit == nil {
		t.mu.Unlock()
		return ErrTrayMissingCallbacks
	}
	t.running = true
	t.mu.Unlock()

	systray.Run(t.onReady, t.onExit)
	return nil
}

// Quit closes the system tray icon and terminates the click handler goroutine.
// Safe to call multiple times.
func (t *TrayIcon) Quit() {
	t.closeOnce.Do(func() {
		close(t.done)
		systray.Quit()
	})
}

func (t *TrayIcon) onReady() {
	systray.SetIcon(iconDisconnectedPNG)
	systray.SetTitle(appTitle)
	systray.SetTooltip(appTitle + " - Disconnected")

	status := systray.AddMenuItem("Status: Disconnected", "Current connection status")
	status.Disable()
	detail := systray.AddMenuItem("", "Status detail")
	detail.Disable()
	detail.Hide()
	traffic := systray.AddMenuItem("", "Tunnel traffic")
	traffic.Disable()
	traffic.Hide()

	systray.AddSeparator()
	connect := systray.AddMenuItem("Connect", "Connect to VPN")
	disconnect := systray.AddMenuItem("Disconnect", "Disconnect from VPN")
	disconnect.Disable()

	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Disconnect and quit")

	t.mu.Lock()
	t.menuStatus = status
	t.menuDetail = detail
	t.menuTrafficRate = traffic
	t.menuConnect = connect
	t.menuDisconnect = disconnect
	t.menuQuit = quit
	t.mu.Unlock()

	emergency.Go(t.handleMenuClicks)
	t.refresh()

	slog.Info("System tray initialized")
}

func (t *TrayIcon) onExit() {
	slog.Info("System tray closed")
}

func (t *TrayIcon) handleMenuClicks() {
	for {
		select {
		case <-t.done:
			return
		case _, ok := <-t.menuConnect.ClickedCh:
			if !ok {
				return
			}
			t.onConnect()
		case _, ok := <-t.menuDisconnect.ClickedCh:
			if !ok {
				return
			}
			t.onDisconnect()
		case _, ok := <-t.menuQuit.ClickedCh:
			if !ok {
				return
			}
			t.onQuit()
		}
	}
}

// refresh redraws the icon and menu. It does nothing before onReady.
func (t *TrayIcon) refresh() {
	t.mu.RLock()
	ready := t.menuStatus != nil
	v := buildView(t.state, t.detail, t.credential, t.tun)
	t.mu.RUnlock()
	if !ready {
		return
	}

	systray.SetIcon(v.icon)
	systray.SetTooltip(v.tooltip)
	t.menuStatus.SetTitle(v.status)

	if v.detail != "" {
		t.menuDetail.SetTitle(v.detail)
		t.menuDetail.Show()
	} else {
		t.menuDetail.Hide()
	}
	if v.showTraffic {
		t.menuTrafficRate.Show()
	} else {
		t.menuTrafficRate.Hide()
	}

	t.menuConnect.SetTitle(v.connectTitle)
	setEnabled(t.menuConnect, v.connectEnabled)
	setEnabled(t.menuDisconnect, v.disconnectEnabled)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}
