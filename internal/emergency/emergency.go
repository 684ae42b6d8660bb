// Package emergency restores system state when the program is about to die
// abnormally: on a panic in any goroutine or on a termination signal.
package emergency

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Timeout bounds a single Run.
const Timeout = 15 * time.Second

// Hook restores one piece of system state. Hooks must be idempotent: they
// may run after a normal teardown already did the same work.
type Hook func(ctx context.Context)

type namedHook struct {
	name string
	fn   Hook
}

var (
	mu      sync.Mutex
	hooks   []namedHook
	running atomic.Bool
)

// Register adds a hook. Hooks run in registration order.
func Register(name string, fn Hook) {
	mu.Lock()
	defer mu.Unlock()
	hooks = append(hooks, namedHook{name: name, fn: fn})
}

// Reset removes every hook.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	hooks = nil
}

// Run executes every hook once. A Run started while another is in progress,
// for example from a hook that panics, returns immediately.
func Run(reason string) {
	if !running.CompareAndSwap(false, true) {
		slog.Warn("Emergency cleanup already in progress", "reason", reason)
		return
	}
	defer running.Store(false)

	mu.Lock()
	list := append([]namedHook(nil), hooks...)
	mu.Unlock()

	slog.Error("Performing emergency cleanup", "reason", reason, "hooks", len(list))
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	for _, h := range list {
		runHook(ctx, h)
	}
}

func runHook(ctx context.Context, h namedHook) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Emergency hook panicked", "hook", h.name, "panic", r)
		}
	}()
	h.fn(ctx)
}

// Recover runs the hooks and re-panics when the calling goroutine is
// panicking. Use it as `defer emergency.Recover()`.
func Recover() {
	if r := recover(); r != nil {
		slog.Error("Panic, restoring system state", "panic", fmt.Sprint(r))
		Run("panic")
		panic(r)
	}
}

// Go starts fn in a goroutine guarded by Recover.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

// Signals are the termination signals handled by Notify. On Windows, console
// close, logoff and shutdown events arrive as SIGTERM.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// Notify relays Signals to the returned channel until ctx ends.
func Notify(ctx context.Context) <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, Signals...)
	go func() {
		<-ctx.Done()
		signal.Stop(ch)
	}()
	return ch
}
