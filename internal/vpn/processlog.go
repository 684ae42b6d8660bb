package vpn

import (
	"log/slog"
	"sync"
)

// DefaultLogCapacity is the number of client output lines retained.
const DefaultLogCapacity = 500

// ProcessLog collects client output and latches the state signals found in it.
// It is shared by the output readers (writers) and the controller (reader).
type ProcessLog struct {
	mu       sync.Mutex
	capacity int

	lines            []string
	connected        bool
	err              string
	postConnectError string
}

// LogSnapshot is a consistent copy of the latched signals.
type LogSnapshot struct {
	Connected bool
	// Error is the first connect-phase error line, empty if none.
	Error string
	// PostConnectError is the first post-connect error line, empty if none.
	PostConnectError string
}

// NewProcessLog creates a log keeping at most capacity lines.
// A non-positive capacity selects DefaultLogCapacity.
func NewProcessLog(capacity int) *ProcessLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &ProcessLog{capacity: capacity}
}

// PushLine classifies line, updates the latches and appends it, evicting the
// oldest line beyond capacity. Once set, connected and the error fields stay
// set until Reset.
func (l *ProcessLog) PushLine(line string) LineKind {
	kind, first := l.push(line)

	// Log outside the lock.
	switch {
	case kind == LineConnected && first:
		slog.Info("Connection confirmed", "line", line)
	case kind == LineConnectError:
		slog.Warn("Connect-phase error", "line", line)
	case kind == LinePostConnectError && first:
		slog.Warn("Post-connect error", "line", line)
	}
	return kind
}

// push applies line under the lock. first reports whether it set a latch.
func (l *ProcessLog) push(line string) (kind LineKind, first bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kind = Classify(line, l.connected)
	switch kind {
	case LineConnected:
		first = !l.connected
		l.connected = true
	case LineConnectError:
		if l.err == "" {
			first = true
			l.err = line
		}
	case LinePostConnectError:
		if l.postConnectError == "" {
			first = true
			l.postConnectError = line
		}
	}

	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.capacity; over > 0 {
		l.lines = append(l.lines[:0], l.lines[over:]...)
	}
	return kind, first
}

// Reset clears the buffer and every latch.
func (l *ProcessLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.connected = false
	l.err = ""
	l.postConnectError = ""
}

// Snapshot returns the current latch values.
func (l *ProcessLog) Snapshot() LogSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LogSnapshot{
		Connected:        l.connected,
		Error:            l.err,
		PostConnectError: l.postConnectError,
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (l *ProcessLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Capacity returns the maximum number of retained lines.
func (l *ProcessLog) Capacity() int {
	return l.capacity
}
