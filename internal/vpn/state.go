// Package vpn runs the TrustTunnel client and reconciles its output and
// exit status into a connection state.
package vpn

// Phase is the coarse connection phase.
type Phase string

const (
	// PhaseDisconnected indicates no client process is owned.
	PhaseDisconnected Phase = "disconnected"
	// PhaseConnecting indicates the client was started and has not confirmed the tunnel yet.
	PhaseConnecting Phase = "connecting"
	// PhaseConnected indicates the client reported an established tunnel or listener.
	PhaseConnected Phase = "connected"
	// PhaseDisconnecting indicates a terminate signal was sent and the exit is pending.
	PhaseDisconnecting Phase = "disconnecting"
	// PhaseError indicates the last attempt failed; Reason carries the label.
	PhaseError Phase = "error"
)

// ConnectionState is the controller's authoritative state.
type ConnectionState struct {
	Phase Phase
	// Reason is the short failure label, set only in PhaseError.
	Reason string
}

var (
	stateDisconnected  = ConnectionState{Phase: PhaseDisconnected}
	stateConnecting    = ConnectionState{Phase: PhaseConnecting}
	stateConnected     = ConnectionState{Phase: PhaseConnected}
	stateDisconnecting = ConnectionState{Phase: PhaseDisconnecting}
)

// Failed returns an error state with the given label.
func Failed(reason string) ConnectionState {
	return ConnectionState{Phase: PhaseError, Reason: reason}
}

// String returns the label shown to the user.
func (s ConnectionState) String() string {
	switch s.Phase {
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseConnecting:
		return "Connecting…"
	case PhaseConnected:
		return "Connected"
	case PhaseDisconnecting:
		return "Disconnecting…"
	case PhaseError:
		return s.Reason
	}
	return string(s.Phase)
}

// IsConnected returns true if the tunnel is up.
func (s ConnectionState) IsConnected() bool {
	return s.Phase == PhaseConnected
}

// IsBusy returns true while a transition is in flight.
func (s ConnectionState) IsBusy() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseDisconnecting
}

// IsActive returns true while a client process may be alive and the
// reconciliation tick has work to do.
func (s ConnectionState) IsActive() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseConnected || s.Phase == PhaseDisconnecting
}

// CanConnect returns true if a new connection can be initiated from this state.
func (s ConnectionState) CanConnect() bool {
	return s.Phase == PhaseDisconnected || s.Phase == PhaseError
}

// CanDisconnect returns true if a disconnect request has anything to stop.
func (s ConnectionState) CanDisconnect() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseConnected
}

// validTransitions defines the allowed phase transitions.
var validTransitions = map[Phase][]Phase{
	PhaseDisconnected: {
		PhaseConnecting,
		PhaseError, // precondition and validation failures
	},
	PhaseConnecting: {
		PhaseConnected,
		PhaseDisconnecting,
		PhaseDisconnected,
		PhaseError,
	},
	PhaseConnected: {
		PhaseDisconnecting,
		PhaseDisconnected,
		PhaseError,
	},
	PhaseDisconnecting: {
		PhaseDisconnected,
		PhaseError,
	},
	PhaseError: {
		PhaseConnecting,
		PhaseDisconnected,
		PhaseError, // a new failure replaces the previous label
	},
}

// IsValidTransition checks if transitioning from one phase to another is allowed.
func IsValidTransition(from, to Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// AllPhases returns all possible connection phases.
func AllPhases() []Phase {
	return []Phase{
		PhaseDisconnected,
		PhaseConnecting,
		PhaseConnected,
		PhaseDisconnecting,
		PhaseError,
	}
}
