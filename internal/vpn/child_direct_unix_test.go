//go:build !windows

package vpn

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDirect_OutputAndExit(t *testing.T) {
	c, err := StartDirect("sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Positive(t, c.ID())
	assert.False(t, c.IsElevated())

	stdout, stderr := c.TakeOutput()
	require.NotNil(t, stdout)
	require.NotNil(t, stderr)
	again, _ := c.TakeOutput()
	assert.Nil(t, again)

	out := bufio.NewScanner(stdout)
	require.True(t, out.Scan())
	assert.Equal(t, "out", out.Text())
	errOut := bufio.NewScanner(stderr)
	require.True(t, errOut.Scan())
	assert.Equal(t, "err", errOut.Text())

	assert.Equal(t, 3, c.Wait().Code)
	status, done := c.TryWait()
	assert.True(t, done)
	assert.Equal(t, 3, status.Code)
	assert.NoError(t, c.Kill(), "killing a reaped child is a no-op")
}

func TestStartDirect_TryWaitDoesNotBlock(t *testing.T) {
	c, err := StartDirect("sleep", "5")
	require.NoError(t, err)

	_, done := c.TryWait()
	assert.False(t, done)

	require.NoError(t, c.Kill())
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("child was not reaped after Kill")
	}
	assert.Equal(t, -1, c.Wait().Code)
}

func TestStartDirect_MissingBinary(t *testing.T) {
	_, err := StartDirect("/nonexistent/trusttunnel_client")
	assert.Error(t, err)
}
