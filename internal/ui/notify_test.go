package ui

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

type recordedNotification struct {
	n        Notification
	replaces uint32
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []recordedNotification
	err    error
	nextID uint32
}

func (r *recordingSender) send(n Notification, replaces uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.nextID++
	r.sent = append(r.sent, recordedNotification{n: n, replaces: replaces})
	return r.nextID, nil
}

func TestNewNotifier(t *testing.T) {
	notifier := NewNotifier(nil)
	assert.NotNil(t, notifier.send)
	assert.True(t, notifier.IsEnabled(), "notifier should be enabled by default")
}

func TestNotifier_SetEnabled(t *testing.T) {
	rec := &recordingSender{}
	notifier := NewNotifier(rec.send)

	notifier.SetEnabled(false)
	assert.False(t, notifier.IsEnabled())
	notifier.Notify(NotifyConnected, "Work", "")
	assert.Empty(t, rec.sent)

	notifier.SetEnabled(true)
	notifier.Notify(NotifyConnected, "Work", "")
	assert.Len(t, rec.sent, 1)
}

func TestNotifier_ReplacesPrevious(t *testing.T) {
	rec := &recordingSender{}
	notifier := NewNotifier(rec.send)

	notifier.Notify(NotifyConnected, "Work", "")
	notifier.Notify(NotifyDisconnected, "Work", "")

	require.Len(t, rec.sent, 2)
	assert.Equal(t, uint32(0), rec.sent[0].replaces)
	assert.Equal(t, uint32(1), rec.sent[1].replaces)
}

func TestNotifier_SendFailureIsQuiet(t *testing.T) {
	rec := &recordingSender{err: errors.New("no session bus")}
	notifier := NewNotifier(rec.send)

	assert.NotPanics(t, func() {
		notifier.Notify(NotifyConnectionFailed, "Work", "Exited (1)")
	})
}

func TestNotifier_InvalidType(t *testing.T) {
	rec := &recordingSender{}
	notifier := NewNotifier(rec.send)

	notifier.Notify(NotificationType(999), "Work", "")

	assert.Empty(t, rec.sent)
}

func TestBuildNotification(t *testing.T) {
	tests := []struct {
		name        string
		kind        NotificationType
		credential  string
		reason      string
		wantSummary string
		wantBody    string
	}{
		{"connected", NotifyConnected, "Work", "", "VPN Connected", "Connected to Work"},
		{"disconnected", NotifyDisconnected, "Work", "", "VPN Disconnected", "Disconnected from Work"},
		{"failed with reason", NotifyConnectionFailed, "Work", "Exited (127)", "VPN Connection Failed", "Failed to connect to Work: Exited (127)"},
		{"unnamed credential", NotifyConnected, "", "", "VPN Connected", "Connected to VPN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := buildNotification(tt.kind, tt.credential, tt.reason)
			require.True(t, ok)
			assert.Equal(t, tt.wantSummary, n.Summary)
			assert.Equal(t, tt.wantBody, n.Body)
			assert.NotEmpty(t, n.Icon)
		})
	}
}

func TestNotificationFor(t *testing.T) {
	disconnected := vpn.ConnectionState{Phase: vpn.PhaseDisconnected}
	connecting := vpn.ConnectionState{Phase: vpn.PhaseConnecting}
	connected := vpn.ConnectionState{Phase: vpn.PhaseConnected}
	disconnecting := vpn.ConnectionState{Phase: vpn.PhaseDisconnecting}

	tests := []struct {
		name     string
		old, new vpn.ConnectionState
		want     NotificationType
		wantOK   bool
	}{
		{"connected", connecting, connected, NotifyConnected, true},
		{"clean disconnect", disconnecting, disconnected, NotifyDisconnected, true},
		{"client exited", connected, disconnected, NotifyDisconnected, true},
		{"failed", connecting, vpn.Failed("Connection failed"), NotifyConnectionFailed, true},
		{"connecting is silent", disconnected, connecting, 0, false},
		{"error acknowledged is silent", vpn.Failed("x"), disconnected, 0, false},
		{"detail change is silent", connected, connected, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := notificationFor(tt.old, tt.new)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNotifier_NotifyTransition(t *testing.T) {
	rec := &recordingSender{}
	notifier := NewNotifier(rec.send)

	notifier.NotifyTransition(vpn.ConnectionState{Phase: vpn.PhaseConnecting}, vpn.Failed("Exited (1)"), "Work")

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "Failed to connect to Work: Exited (1)", rec.sent[0].n.Body)
}
