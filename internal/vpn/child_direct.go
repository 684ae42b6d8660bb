package vpn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/shini4i/trusttunnel-gui/internal/emergency"
)

// DirectChild is a client process started by this program with piped output.
// A background goroutine reaps it so TryWait never blocks.
type DirectChild struct {
	cmd   *exec.Cmd
	guard io.Closer

	mu     sync.Mutex
	stdout io.ReadCloser
	stderr io.ReadCloser

	done   chan struct{}
	status ExitStatus
}

// StartDirect starts name with args, stdin on the null device and stdout and
// stderr on pipes.
func StartDirect(name string, args ...string) (*DirectChild, error) {
	// #nosec G204 -- name is the located client binary or the elevation wrapper
	cmd := exec.Command(name, args...)
	configureCommand(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends; readers see EOF once it exits.
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if startErr != nil {
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, startErr
	}

	c := &DirectChild{
		cmd:    cmd,
		guard:  attachGuard(cmd.Process),
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
	}
	emergency.Go(c.reap)
	return c, nil
}

func (c *DirectChild) reap() {
	err := c.cmd.Wait()
	status := ExitStatus{Code: -1}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		status.Code = 0
	case errors.As(err, &exitErr):
		status.Code = exitErr.ExitCode()
	default:
		slog.Warn("Waiting for client process failed", "pid", c.ID(), "error", err)
	}
	if c.guard != nil {
		_ = c.guard.Close()
	}
	c.status = status
	close(c.done)
}

func (c *DirectChild) ID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *DirectChild) IsElevated() bool { return false }

func (c *DirectChild) TryWait() (ExitStatus, bool) {
	select {
	case <-c.done:
		return c.status, true
	default:
		return ExitStatus{}, false
	}
}

func (c *DirectChild) Kill() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", c.ID(), err)
	}
	return nil
}

func (c *DirectChild) Wait() ExitStatus {
	<-c.done
	return c.status
}

// Done is closed once the process has been reaped.
func (c *DirectChild) Done() <-chan struct{} {
	return c.done
}

func (c *DirectChild) TakeOutput() (io.ReadCloser, io.ReadCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stdout, stderr := c.stdout, c.stderr
	c.stdout, c.stderr = nil, nil
	return stdout, stderr
}
