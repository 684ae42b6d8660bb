// Package stats samples traffic counters of the tunnel interface for the tray.
package stats

import "time"

// Traffic is one sample of tunnel interface counters.
type Traffic struct {
	Interface string

	RxBytes uint64
	TxBytes uint64

	RxBytesPerSec float64
	TxBytesPerSec float64

	// Session counters start at zero when sampling starts.
	SessionRxBytes uint64
	SessionTxBytes uint64

	Duration  time.Duration
	Timestamp time.Time
}

// Counters is a raw rx/tx byte count of one interface.
type Counters struct {
	Name    string
	RxBytes uint64
	TxBytes uint64
}

// Source returns the counters of every interface.
type Source func() ([]Counters, error)
