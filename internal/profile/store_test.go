package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceCredential = `
hostname = "vpn.example.com"
addresses = ["1.2.3.4:443"]
username = "alice"
password = "pw"
`

const bobCredential = `
hostname = "Beta.example.com"
addresses = ["5.6.7.8"]
username = "bob"
password = "pw"
`

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "trusttunnel"))
	require.NoError(t, err)
	return store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestNewStore(t *testing.T) {
	store := setupTestStore(t)
	assert.DirExists(t, store.Dir())
}

func TestStore_List(t *testing.T) {
	store := setupTestStore(t)
	writeFile(t, filepath.Join(store.Dir(), "zeta.toml"), aliceCredential)
	writeFile(t, filepath.Join(store.Dir(), "alpha.toml"), bobCredential)
	writeFile(t, filepath.Join(store.Dir(), "client.toml"), aliceCredential)
	writeFile(t, filepath.Join(store.Dir(), "trusttunnel-ui.toml"), `tunnel_mode = "tun"`)
	writeFile(t, filepath.Join(store.Dir(), "notes.txt"), "ignored")
	writeFile(t, filepath.Join(store.Dir(), "broken.toml"), "hostname = = 1")
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "logs"), 0700))

	result, err := store.List()
	require.NoError(t, err)

	require.Len(t, result.Credentials, 2)
	assert.Equal(t, "alice@vpn.example.com", result.Credentials[0].Name)
	assert.Equal(t, "bob@Beta.example.com", result.Credentials[1].Name)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, filepath.Join(store.Dir(), "broken.toml"), result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Error(), "broken.toml")
	assert.NotNil(t, result.Errors[0].Unwrap())
}

func TestStore_List_Empty(t *testing.T) {
	store := setupTestStore(t)

	result, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, result.Credentials)
	assert.Empty(t, result.Errors)
}

func TestStore_Find(t *testing.T) {
	store := setupTestStore(t)
	path := filepath.Join(store.Dir(), "office.toml")
	writeFile(t, path, aliceCredential)

	t.Run("by path", func(t *testing.T) {
		cred, err := store.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, cred.Path)
		assert.Equal(t, "alice", cred.Endpoint.Username)
	})

	t.Run("by file name", func(t *testing.T) {
		cred, err := store.Find("office.toml")
		require.NoError(t, err)
		assert.Equal(t, path, cred.Path)
	})

	t.Run("by stem", func(t *testing.T) {
		cred, err := store.Find("office")
		require.NoError(t, err)
		assert.Equal(t, path, cred.Path)
	})

	t.Run("by display name", func(t *testing.T) {
		cred, err := store.Find("ALICE@vpn.example.com")
		require.NoError(t, err)
		assert.Equal(t, path, cred.Path)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Find("nobody")
		assert.ErrorIs(t, err, ErrStoreNotFound)

		_, err = store.Find("")
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})
}

func TestStore_Import(t *testing.T) {
	store := setupTestStore(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "download.toml")
	writeFile(t, src, aliceCredential)

	dest, err := store.Import(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "alice@vpn.example.com.toml"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, aliceCredential, string(data))

	t.Run("identical content is reused", func(t *testing.T) {
		again, err := store.Import(src)
		require.NoError(t, err)
		assert.Equal(t, dest, again)
	})

	t.Run("different content gets a suffix", func(t *testing.T) {
		other := filepath.Join(srcDir, "other.toml")
		writeFile(t, other, aliceCredential+"anti_dpi = true\n")

		got, err := store.Import(other)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(store.Dir(), "alice@vpn.example.com_1.toml"), got)
	})

	t.Run("unparsable source", func(t *testing.T) {
		bad := filepath.Join(srcDir, "bad.toml")
		writeFile(t, bad, "= nope")
		_, err := store.Import(bad)
		require.Error(t, err)
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a_b_c", fileName("a/b\\c"))
	assert.Equal(t, "_client", fileName("client"))
}
