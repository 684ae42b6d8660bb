package vpn

import (
	"context"
	"log/slog"
	"time"

	"github.com/shini4i/trusttunnel-gui/internal/emergency"
)

// reapTimeout bounds the final Wait after a forced kill.
const reapTimeout = 5 * time.Second

// stopChild asks child to exit, waits up to timeout for it, then kills it.
// It returns once the child is reaped or the reap wait gave up.
func stopChild(ctx context.Context, s Services, child Child, timeout, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	log := slog.With("pid", child.ID(), "elevated", child.IsElevated())

	if err := s.Terminate(ctx, child); err != nil {
		log.Warn("Graceful terminate failed", "error", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if status, done := child.TryWait(); done {
			log.Info("Client exited after terminate", "status", status.String())
			return
		}
		time.Sleep(interval)
	}

	log.Warn("Client did not exit in time, killing")
	if err := child.Kill(); err != nil {
		log.Warn("Kill failed, trying forced kill", "error", err)
		if err := s.ForceKill(ctx, child); err != nil {
			log.Error("Forced kill failed", "error", err)
		}
	}

	reaped := make(chan ExitStatus, 1)
	emergency.Go(func() { reaped <- child.Wait() })
	select {
	case status := <-reaped:
		log.Info("Client reaped", "status", status.String())
	case <-time.After(reapTimeout):
		log.Error("Giving up waiting for client to exit")
	}
}

// stopChildInBackground hands child to a goroutine that stops and reaps it.
// The caller must not use child afterwards.
func stopChildInBackground(s Services, child Child, timeout, interval time.Duration) {
	if child == nil {
		return
	}
	emergency.Go(func() {
		stopChild(context.Background(), s, child, timeout, interval)
	})
}
