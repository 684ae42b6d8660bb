package stats

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/shini4i/trusttunnel-gui/internal/emergency"
)

// DefaultPollInterval is the default interval between samples.
const DefaultPollInterval = 2 * time.Second

// ErrNoTunnelInterface is returned by Start when no tunnel interface is present.
var ErrNoTunnelInterface = errors.New("no tunnel interface found")

// tunnelPrefixes match interface names created by the client's TUN listener.
var tunnelPrefixes = []string{"tun", "utun", "wintun", "trusttunnel"}

// SystemSource reads per-interface counters through gopsutil.
func SystemSource() ([]Counters, error) {
	stats, err := psnet.IOCounters(true)
	if err != nil {
		return nil, fmt.Errorf("read interface counters: %w", err)
	}
	out := make([]Counters, 0, len(stats))
	for _, s := range stats {
		out = append(out, Counters{Name: s.Name, RxBytes: s.BytesRecv, TxBytes: s.BytesSent})
	}
	return out, nil
}

// Collector periodically samples the tunnel interface.
type Collector struct {
	pollInterval time.Duration
	source       Source
	now          func() time.Time

	mu         sync.RWMutex
	iface      string
	baselineRx uint64
	baselineTx uint64
	lastRx     uint64
	lastTx     uint64
	lastTime   time.Time
	startTime  time.Time
	latest     Traffic
	onSample   func(Traffic)

	stopChan chan struct{}
}

// NewCollector creates a collector reading source every pollInterval.
// Zero values select DefaultPollInterval and SystemSource.
func NewCollector(pollInterval time.Duration, source Source) *Collector {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if source == nil {
		source = SystemSource
	}
	return &Collector{
		pollInterval: pollInterval,
		source:       source,
		now:          time.Now,
	}
}

// OnSample registers a callback invoked from the polling goroutine.
func (c *Collector) OnSample(callback func(Traffic)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSample = callback
}

// Start begins sampling. An empty iface selects the first tunnel interface.
// Calling Start while running is a no-op.
func (c *Collector) Start(iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopChan != nil {
		return nil
	}

	counters, err := c.source()
	if err != nil {
		return err
	}
	found, ok := pick(counters, iface)
	if !ok {
		if iface != "" {
			return fmt.Errorf("interface %s: %w", iface, ErrNoTunnelInterface)
		}
		return ErrNoTunnelInterface
	}

	now := c.now()
	c.iface = found.Name
	c.baselineRx, c.baselineTx = found.RxBytes, found.TxBytes
	c.lastRx, c.lastTx = found.RxBytes, found.TxBytes
	c.lastTime = now
	c.startTime = now
	c.latest = Traffic{Interface: found.Name, Timestamp: now}
	c.stopChan = make(chan struct{})

	stop := c.stopChan
	emergency.Go(func() { c.pollLoop(stop) })

	slog.Info("Traffic collector started", "interface", found.Name)
	return nil
}

// Stop ends sampling. Safe to call when not running.
func (c *Collector) Stop() {
	c.mu.Lock()
	if c.stopChan == nil {
		c.mu.Unlock()
		return
	}
	close(c.stopChan)
	c.stopChan = nil
	iface := c.iface
	c.iface = ""
	c.mu.Unlock()

	slog.Info("Traffic collector stopped", "interface", iface)
}

// IsRunning returns true while sampling.
func (c *Collector) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopChan != nil
}

// Latest returns the most recent sample.
func (c *Collector) Latest() Traffic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sample()
		}
	}
}

// Sample reads the counters once, updates rates and notifies the callback.
func (c *Collector) Sample() {
	c.mu.Lock()
	if c.iface == "" {
		c.mu.Unlock()
		return
	}
	counters, err := c.source()
	if err != nil {
		c.mu.Unlock()
		slog.Debug("Failed to read interface counters", "error", err)
		return
	}
	cur, ok := pick(counters, c.iface)
	if !ok {
		c.mu.Unlock()
		slog.Debug("Tunnel interface vanished", "interface", c.iface)
		return
	}

	now := c.now()
	elapsed := now.Sub(c.lastTime).Seconds()
	sample := Traffic{
		Interface:      c.iface,
		RxBytes:        cur.RxBytes,
		TxBytes:        cur.TxBytes,
		SessionRxBytes: delta(cur.RxBytes, c.baselineRx),
		SessionTxBytes: delta(cur.TxBytes, c.baselineTx),
		Duration:       now.Sub(c.startTime),
		Timestamp:      now,
	}
	if elapsed > 0 {
		sample.RxBytesPerSec = float64(delta(cur.RxBytes, c.lastRx)) / elapsed
		sample.TxBytesPerSec = float64(delta(cur.TxBytes, c.lastTx)) / elapsed
	}
	c.lastRx, c.lastTx = cur.RxBytes, cur.TxBytes
	c.lastTime = now
	c.latest = sample
	callback := c.onSample
	c.mu.Unlock()

	if callback != nil {
		callback(sample)
	}
}

// delta tolerates counters that reset when the interface is recreated.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

func pick(counters []Counters, iface string) (Counters, bool) {
	for _, ct := range counters {
		if iface != "" {
			if ct.Name == iface {
				return ct, true
			}
			continue
		}
		if isTunnel(ct.Name) {
			return ct, true
		}
	}
	return Counters{}, false
}

func isTunnel(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range tunnelPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
