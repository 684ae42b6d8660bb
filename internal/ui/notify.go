package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

const (
	notificationsDest      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
	notifyTimeoutMs        = int32(5000)
)

// NotificationType identifies the type of notification to display.
type NotificationType int

const (
	// NotifyConnected indicates a successful VPN connection.
	NotifyConnected NotificationType = iota
	// NotifyDisconnected indicates the VPN has disconnected.
	NotifyDisconnected
	// NotifyConnectionFailed indicates a connection failure.
	NotifyConnectionFailed
)

// Notification is one desktop notification.
type Notification struct {
	Summary string
	Body    string
	Icon    string
}

// Sender delivers a notification, replacing the notification with id
// replaces when non-zero. It returns the id of the shown notification.
type Sender func(n Notification, replaces uint32) (uint32, error)

// Notifier sends desktop notifications for session events.
// All methods are safe for concurrent access.
type Notifier struct {
	send    Sender
	enabled atomic.Bool

	mu     sync.Mutex
	lastID uint32
}

// NewNotifier creates a notifier using send. A nil send selects the
// session bus org.freedesktop.Notifications service.
func NewNotifier(send Sender) *Notifier {
	if send == nil {
		send = sendDBus
	}
	n := &Notifier{send: send}
	n.enabled.Store(true)
	return n
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	return n.enabled.Load()
}

// Notify sends a notification of kind. Each notification replaces the
// previous one.
func (n *Notifier) Notify(kind NotificationType, credential, reason string) {
	if !n.enabled.Load() {
		return
	}
	msg, ok := buildNotification(kind, credential, reason)
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	id, err := n.send(msg, n.lastID)
	if err != nil {
		slog.Debug("Desktop notification failed", "error", err)
		return
	}
	n.lastID = id
	slog.Debug("Notification sent", "summary", msg.Summary, "body", msg.Body)
}

// NotifyTransition sends the notification matching a state change, if any.
func (n *Notifier) NotifyTransition(old, new vpn.ConnectionState, credential string) {
	if kind, ok := notificationFor(old, new); ok {
		n.Notify(kind, credential, new.Reason)
	}
}

func notificationFor(old, new vpn.ConnectionState) (NotificationType, bool) {
	if old.Phase == new.Phase {
		return 0, false
	}
	switch new.Phase {
	case vpn.PhaseConnected:
		return NotifyConnected, true
	case vpn.PhaseError:
		return NotifyConnectionFailed, true
	case vpn.PhaseDisconnected:
		if old.Phase == vpn.PhaseConnected || old.Phase == vpn.PhaseDisconnecting {
			return NotifyDisconnected, true
		}
	}
	return 0, false
}

func buildNotification(kind NotificationType, credential, reason string) (Notification, bool) {
	name := credential
	if name == "" {
		name = "VPN"
	}
	switch kind {
	case NotifyConnected:
		return Notification{
			Summary: "VPN Connected",
			Body:    "Connected to " + name,
			Icon:    "network-vpn-symbolic",
		}, true
	case NotifyDisconnected:
		return Notification{
			Summary: "VPN Disconnected",
			Body:    "Disconnected from " + name,
			Icon:    "network-vpn-disconnected-symbolic",
		}, true
	case NotifyConnectionFailed:
		body := "Failed to connect to " + name
		if reason != "" {
			body += ": " + reason
		}
		return Notification{
			Summary: "VPN Connection Failed",
			Body:    body,
			Icon:    "dialog-error-symbolic",
		}, true
	}
	return Notification{}, false
}

func sendDBus(n Notification, replaces uint32) (uint32, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return 0, fmt.Errorf("connect session bus: %w", err)
	}
	obj := conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath))
	call := obj.Call(notificationsInterface+".Notify", 0,
		appTitle, replaces, n.Icon, n.Summary, n.Body,
		[]string{}, map[string]dbus.Variant{}, notifyTimeoutMs)
	if call.Err != nil {
		return 0, fmt.Errorf("notify: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify reply: %w", err)
	}
	return id, nil
}
