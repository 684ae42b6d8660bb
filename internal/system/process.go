package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessRunning reports whether a process with the given image name exists.
// Names are compared case-insensitively, with or without an .exe suffix.
func ProcessRunning(ctx context.Context, image string) bool {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		slog.Debug("Failed to list processes", "error", err)
		return false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if imageMatches(name, image) {
			return true
		}
	}
	return false
}

// KillByName force-kills every process with the given image name except the
// current one and returns how many were signalled.
func KillByName(ctx context.Context, image string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	self := int32(os.Getpid())
	killed := 0
	var lastErr error
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || !imageMatches(name, image) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			slog.Warn("Failed to kill process", "pid", p.Pid, "image", name, "error", err)
			lastErr = err
			continue
		}
		slog.Info("Killed process by image name", "pid", p.Pid, "image", name)
		killed++
	}
	if killed == 0 && lastErr != nil {
		return 0, fmt.Errorf("kill %s: %w", image, lastErr)
	}
	return killed, nil
}

func imageMatches(name, image string) bool {
	trim := func(s string) string {
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}
	return trim(name) == trim(image)
}
