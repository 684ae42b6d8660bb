package vpn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/trusttunnel-gui/internal/system"
	"github.com/shini4i/trusttunnel-gui/internal/system/systemtest"
)

func TestFindBinary(t *testing.T) {
	dir := t.TempDir()
	installed := filepath.Join(dir, "trusttunnel_client")
	require.NoError(t, os.WriteFile(installed, []byte("#!/bin/sh\n"), 0o700))
	missing := filepath.Join(dir, "nope")

	tests := []struct {
		name       string
		configured string
		candidates []string
		wantPath   string
		wantOK     bool
	}{
		{
			name:       "configured path wins",
			configured: installed,
			candidates: []string{missing},
			wantPath:   installed,
			wantOK:     true,
		},
		{
			name:       "missing configured falls back to candidates",
			configured: missing,
			candidates: []string{missing, installed},
			wantPath:   installed,
			wantOK:     true,
		},
		{
			name:       "nothing found",
			candidates: []string{missing},
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := findBinary(tt.configured, tt.candidates)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestCheckBinaryWorks(t *testing.T) {
	const binary = "/opt/trusttunnel_client/trusttunnel_client"

	tests := []struct {
		name      string
		result    system.Result
		needsRoot bool
		wantErr   bool
		wantCall  bool
	}{
		{
			name:     "help succeeds",
			result:   system.Result{OK: true, Stdout: "usage: trusttunnel_client -c <config>"},
			wantCall: true,
		},
		{
			name:     "non-zero help exit is fine",
			result:   system.Result{Code: 1, Stderr: "unknown flag"},
			wantCall: true,
		},
		{
			name:     "cannot start",
			result:   system.Result{Code: -1, Stderr: "exec format error"},
			wantErr:  true,
			wantCall: true,
		},
		{
			name:      "root binary skipped",
			result:    system.Result{Code: -1},
			needsRoot: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := systemtest.NewMock()
			mock.Expect(binary+" --help", tt.result)

			err := checkBinaryWorks(context.Background(), mock, binary, tt.needsRoot)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "exec format error")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCall, mock.WasCalled(binary+" --help"))
		})
	}
}

func TestStatusError(t *testing.T) {
	se := spawnFailed(os.ErrPermission)

	assert.Equal(t, "Failed to start client", se.Label)
	assert.ErrorIs(t, se, os.ErrPermission)
	assert.Contains(t, se.Error(), InstallURL)

	bare := &StatusError{Label: "Connection failed"}
	assert.Equal(t, "Connection failed", bare.Error())
}

func TestExitDetail(t *testing.T) {
	assert.Equal(t, elevationDismissedDetail, exitDetail(ExitStatus{Code: ExitElevationDismissed}, "/bin/client"))
	assert.Contains(t, exitDetail(ExitStatus{Code: ExitNotFound}, "/bin/client"), "Binary '/bin/client' not found")
	assert.Equal(t, "Client exited with code 3", exitDetail(ExitStatus{Code: 3}, "/bin/client"))
}
