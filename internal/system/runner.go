// Package system runs the external commands that platform backends shell out to.
package system

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every command started by ExecRunner.
const DefaultTimeout = 30 * time.Second

// ElevationWrapper is the polkit front-end used to retry privileged commands.
const ElevationWrapper = "pkexec"

// Result is the captured outcome of a finished command.
type Result struct {
	// OK is true when the command exited with code 0.
	OK bool
	// Code is the exit code, or -1 when the command could not be started
	// or was terminated by a signal.
	Code   int
	Stdout string
	Stderr string
}

// Output returns trimmed stdout followed by trimmed stderr.
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Runner executes short-lived commands synchronously.
// Callers must not use it for long-running processes.
type Runner interface {
	// Run executes the command with stdin connected to the null device.
	Run(ctx context.Context, name string, args ...string) Result
	// RunInput executes the command feeding input on stdin.
	RunInput(ctx context.Context, input, name string, args ...string) Result
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct {
	// Timeout caps a single command. Zero disables the cap.
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner with DefaultTimeout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultTimeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) Result {
	return r.run(ctx, nil, name, args)
}

// RunInput implements Runner.
func (r *ExecRunner) RunInput(ctx context.Context, input, name string, args ...string) Result {
	return r.run(ctx, strings.NewReader(input), name, args)
}

func (r *ExecRunner) run(ctx context.Context, stdin io.Reader, name string, args []string) Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// #nosec G204 -- commands are assembled by backends from fixed program names
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.OK = true
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
	default:
		res.Code = -1
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}

	slog.Debug("Command finished",
		"command", CommandLine(name, args),
		"ok", res.OK,
		"code", res.Code,
		"output", res.Output())
	return res
}

// RunWithElevation runs the command directly and, if that fails, once more
// wrapped in pkexec.
func RunWithElevation(ctx context.Context, r Runner, name string, args ...string) Result {
	res := r.Run(ctx, name, args...)
	if res.OK {
		return res
	}
	slog.Info("Command failed, retrying with pkexec", "command", CommandLine(name, args), "code", res.Code)
	return r.Run(ctx, ElevationWrapper, append([]string{name}, args...)...)
}

// CommandLine renders a command for logs and mock lookups.
func CommandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
