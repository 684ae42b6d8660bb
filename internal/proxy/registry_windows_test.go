//go:build windows

package proxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Backend(t *testing.T) {
	var b Backend = Registry{}
	assert.Equal(t, "Windows Registry", b.Name())
}

func TestRegistry_BypassList(t *testing.T) {
	for _, host := range []string{"localhost", "127.*", "192.168.*", "<local>"} {
		assert.True(t, strings.Contains(proxyOverride, host), host)
	}
}
