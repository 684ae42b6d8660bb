package stats

import (
	"fmt"
	"time"
)

type unit struct {
	size   float64
	suffix string
}

// Binary units, largest first.
var units = []unit{
	{1 << 40, "TiB"},
	{1 << 30, "GiB"},
	{1 << 20, "MiB"},
	{1 << 10, "KiB"},
}

// FormatBytes formats a byte count using binary units.
func FormatBytes(bytes uint64) string {
	v := float64(bytes)
	for _, u := range units {
		if v >= u.size {
			return fmt.Sprintf("%.1f %s", v/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%d B", bytes)
}

// FormatRate formats a bytes-per-second rate using binary units.
func FormatRate(bytesPerSec float64) string {
	for _, u := range units[1:] {
		if bytesPerSec >= u.size {
			return fmt.Sprintf("%.1f %s/s", bytesPerSec/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

// FormatDuration formats d as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Summary is the one-line traffic text shown in the tray menu.
func Summary(t Traffic) string {
	return fmt.Sprintf("↓ %s  ↑ %s  (%s / %s, %s)",
		FormatRate(t.RxBytesPerSec), FormatRate(t.TxBytesPerSec),
		FormatBytes(t.SessionRxBytes), FormatBytes(t.SessionTxBytes),
		FormatDuration(t.Duration))
}
