package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	data := []byte("loglevel = 'info'\n")

	require.NoError(t, AtomicWrite(path, data, 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestAtomicWrite_OverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, AtomicWrite(path, []byte("new"), 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWrite_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusttunnel", "nested", "client.toml")

	require.NoError(t, AtomicWrite(path, []byte("x"), 0o600))

	assert.FileExists(t, path)
}

func TestAtomicWrite_ParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := AtomicWrite(filepath.Join(blocker, "client.toml"), []byte("x"), 0o600)

	assert.Error(t, err)
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "trusttunnel_elevated_1.log")
	require.NoError(t, os.WriteFile(present, nil, 0o600))

	err := RemoveIfExists(present, filepath.Join(dir, "missing.exit"), "")

	assert.NoError(t, err)
	assert.NoFileExists(t, present)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker")

	assert.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.True(t, Exists(path))
}
