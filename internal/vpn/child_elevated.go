package vpn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
)

// Side-channel file naming for elevated sessions.
const (
	elevatedFilePrefix = "trusttunnel_elevated_"
	elevatedLogSuffix  = ".log"
	elevatedExitSuffix = ".exit"

	// terminatedMarker is written to the exit marker when the client is
	// killed by image name and cannot write its own exit code.
	terminatedMarker = "terminated"
)

// ElevatedPaths returns the log and exit marker paths used by process pid.
func ElevatedPaths(dir string, pid int) (logPath, markerPath string) {
	base := filepath.Join(dir, fmt.Sprintf("%s%d", elevatedFilePrefix, pid))
	return base + elevatedLogSuffix, base + elevatedExitSuffix
}

// ElevatedChild is a client started behind an elevation prompt. There is no
// process handle: output is appended to LogPath and the exit code is written
// to MarkerPath when the client ends.
type ElevatedChild struct {
	LogPath    string
	MarkerPath string
	// Terminate kills the client by image name.
	Terminate func(ctx context.Context) error
	// PollInterval paces Wait. Zero selects 250ms.
	PollInterval time.Duration
}

// PrepareElevatedFiles truncates the log and removes a stale marker before launch.
func PrepareElevatedFiles(logPath, markerPath string) error {
	if err := os.WriteFile(logPath, nil, 0o600); err != nil {
		return fmt.Errorf("create elevated log: %w", err)
	}
	return fileutil.RemoveIfExists(markerPath)
}

func (c *ElevatedChild) ID() int { return 0 }

func (c *ElevatedChild) IsElevated() bool { return true }

func (c *ElevatedChild) TryWait() (ExitStatus, bool) {
	// #nosec G304 -- marker path is derived from the temp dir and our pid
	data, err := os.ReadFile(c.MarkerPath)
	if err != nil {
		return ExitStatus{}, false
	}
	return parseExitMarker(data), true
}

// Kill terminates the client by image name and then writes a synthetic
// marker, so pollers observe the exit even if the kill raced.
func (c *ElevatedChild) Kill() error {
	var killErr error
	if c.Terminate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		killErr = c.Terminate(ctx)
		cancel()
	}
	if _, done := c.TryWait(); !done {
		if err := os.WriteFile(c.MarkerPath, []byte(terminatedMarker), 0o600); err != nil {
			slog.Warn("Failed to write exit marker", "path", c.MarkerPath, "error", err)
		}
	}
	return killErr
}

func (c *ElevatedChild) Wait() ExitStatus {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	for {
		if status, ok := c.TryWait(); ok {
			return status
		}
		time.Sleep(interval)
	}
}

func (c *ElevatedChild) TakeOutput() (io.ReadCloser, io.ReadCloser) {
	return nil, nil
}

// Cleanup removes both side files.
func (c *ElevatedChild) Cleanup() {
	_ = fileutil.RemoveIfExists(c.LogPath, c.MarkerPath)
}

// SweepElevatedFiles removes side files left in dir by other, crashed
// instances. Files belonging to ownPID are kept.
func SweepElevatedFiles(dir string, ownPID int) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	ownLog, ownMarker := ElevatedPaths(dir, ownPID)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, elevatedFilePrefix) ||
			!(strings.HasSuffix(name, elevatedLogSuffix) || strings.HasSuffix(name, elevatedExitSuffix)) {
			continue
		}
		path := filepath.Join(dir, name)
		if path == ownLog || path == ownMarker {
			continue
		}
		slog.Info("Removing stale elevated file", "path", path)
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}
