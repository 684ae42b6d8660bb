package vpn

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Exit codes with a dedicated meaning.
const (
	// ExitElevationDismissed is returned by pkexec when the prompt is dismissed.
	ExitElevationDismissed = 126
	// ExitNotFound is returned when the binary could not be executed.
	ExitNotFound = 127
)

// ExitStatus is how a client process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 when the process was killed by a signal
	// or the code is unknown.
	Code int
}

// Success returns true for a clean exit.
func (s ExitStatus) Success() bool {
	return s.Code == 0
}

// CodeLabel returns the code as text, or "signal" when unknown.
func (s ExitStatus) CodeLabel() string {
	if s.Code < 0 {
		return "signal"
	}
	return strconv.Itoa(s.Code)
}

func (s ExitStatus) String() string {
	if s.Code < 0 {
		return "terminated by signal"
	}
	return fmt.Sprintf("exit code: %d", s.Code)
}

// parseExitMarker reads an exit code written by PowerShell. Anything that is
// not a number, such as the synthetic "terminated", is an unknown code.
func parseExitMarker(data []byte) ExitStatus {
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	code, err := strconv.Atoi(text)
	if err != nil {
		return ExitStatus{Code: -1}
	}
	return ExitStatus{Code: code}
}

// Child is a running client process. Implementations are owned by one
// goroutine at a time: the controller, or a background killer it was handed to.
type Child interface {
	// ID returns the OS process id, or 0 when no handle exists.
	ID() int
	// IsElevated returns true when the process runs detached behind a
	// privilege prompt and is observed through side files only.
	IsElevated() bool
	// TryWait returns the exit status without blocking.
	TryWait() (ExitStatus, bool)
	// Kill terminates the process forcefully.
	Kill() error
	// Wait blocks until the process has exited.
	Wait() ExitStatus
	// TakeOutput hands over the stdout and stderr readers. It returns nil
	// readers after the first call and for elevated children.
	TakeOutput() (stdout, stderr io.ReadCloser)
}
