package stats

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	counters []Counters
	err      error
}

func (f *fakeSource) read() ([]Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Counters(nil), f.counters...), f.err
}

func (f *fakeSource) set(c ...Counters) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = c
}

func newTestCollector(src *fakeSource) (*Collector, *time.Time) {
	c := NewCollector(time.Hour, src.read)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCollector_StartPicksTunnelInterface(t *testing.T) {
	src := &fakeSource{counters: []Counters{
		{Name: "lo", RxBytes: 1},
		{Name: "eth0", RxBytes: 2},
		{Name: "tun0", RxBytes: 100, TxBytes: 50},
	}}
	c, _ := newTestCollector(src)

	require.NoError(t, c.Start(""))
	defer c.Stop()

	assert.True(t, c.IsRunning())
	assert.Equal(t, "tun0", c.Latest().Interface)
}

func TestCollector_StartErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   *fakeSource
		iface string
	}{
		{name: "no tunnel", src: &fakeSource{counters: []Counters{{Name: "eth0"}}}},
		{name: "named interface missing", src: &fakeSource{counters: []Counters{{Name: "tun0"}}}, iface: "tun5"},
		{name: "source failure", src: &fakeSource{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCollector(tt.src)
			assert.Error(t, c.Start(tt.iface))
			assert.False(t, c.IsRunning())
		})
	}
}

func TestCollector_Sample(t *testing.T) {
	src := &fakeSource{counters: []Counters{{Name: "tun0", RxBytes: 1000, TxBytes: 500}}}
	c, now := newTestCollector(src)
	var got []Traffic
	c.OnSample(func(s Traffic) { got = append(got, s) })
	require.NoError(t, c.Start(""))
	defer c.Stop()

	*now = now.Add(2 * time.Second)
	src.set(Counters{Name: "tun0", RxBytes: 3048, TxBytes: 1524})
	c.Sample()

	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, uint64(2048), s.SessionRxBytes)
	assert.Equal(t, uint64(1024), s.SessionTxBytes)
	assert.InDelta(t, 1024.0, s.RxBytesPerSec, 0.001)
	assert.InDelta(t, 512.0, s.TxBytesPerSec, 0.001)
	assert.Equal(t, 2*time.Second, s.Duration)
	assert.Equal(t, s, c.Latest())
}

func TestCollector_CounterReset(t *testing.T) {
	src := &fakeSource{counters: []Counters{{Name: "tun0", RxBytes: 1000, TxBytes: 1000}}}
	c, now := newTestCollector(src)
	require.NoError(t, c.Start("tun0"))
	defer c.Stop()

	*now = now.Add(time.Second)
	src.set(Counters{Name: "tun0", RxBytes: 10, TxBytes: 10})
	c.Sample()

	assert.Equal(t, uint64(0), c.Latest().SessionRxBytes)
	assert.Zero(t, c.Latest().RxBytesPerSec)
}

func TestCollector_StopIsIdempotent(t *testing.T) {
	src := &fakeSource{counters: []Counters{{Name: "tun0"}}}
	c, _ := newTestCollector(src)
	require.NoError(t, c.Start(""))

	c.Stop()
	c.Stop()

	assert.False(t, c.IsRunning())
	c.Sample()
}

func TestIsTunnel(t *testing.T) {
	assert.True(t, isTunnel("tun0"))
	assert.True(t, isTunnel("utun3"))
	assert.True(t, isTunnel("TrustTunnel"))
	assert.False(t, isTunnel("eth0"))
	assert.False(t, isTunnel("wlan0"))
}
