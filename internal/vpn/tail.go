package vpn

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// logTailer follows the log file of an elevated client and emits complete
// lines until the exit marker appears.
type logTailer struct {
	path       string
	markerPath string
	// poll is the fallback read interval when no file events arrive.
	poll time.Duration
	emit func(line string)

	offset  int64
	partial []byte
	started bool
}

func newLogTailer(path, markerPath string, emit func(string)) *logTailer {
	return &logTailer{
		path:       path,
		markerPath: markerPath,
		poll:       250 * time.Millisecond,
		emit:       emit,
	}
}

// run reads until the marker exists or ctx is cancelled. Write events from
// fsnotify wake it early; the ticker covers filesystems without events.
func (t *logTailer) run(ctx context.Context) {
	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("Elevated log watcher unavailable, polling only", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(filepath.Dir(t.path)); err != nil {
			slog.Debug("Failed to watch elevated log directory", "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		t.readAvailable()
		if fileutil.Exists(t.markerPath) {
			t.readAvailable()
			t.flush()
			slog.Debug("Elevated client exit marker found, log reader stopping")
			return
		}

		select {
		case <-ctx.Done():
			t.flush()
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Name != t.path && ev.Name != t.markerPath {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("Elevated log watcher error", "error", err)
		case <-ticker.C:
		}
	}
}

// readAvailable consumes bytes appended since the last read.
func (t *logTailer) readAvailable() {
	// #nosec G304 -- path is derived from the temp dir and our pid
	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return
	}
	t.offset += int64(len(data))
	t.feed(data)
}

// feed splits data into lines, keeping an unterminated tail for the next call.
func (t *logTailer) feed(data []byte) {
	t.partial = append(t.partial, data...)
	if !t.started {
		if len(t.partial) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, t.partial) {
			return
		}
		t.partial = bytes.TrimPrefix(t.partial, utf8BOM)
		t.started = true
	}

	for {
		idx := bytes.IndexByte(t.partial, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimRight(string(t.partial[:idx]), "\r")
		t.partial = t.partial[idx+1:]
		t.emit(line)
	}
}

// flush emits a final line without a terminator.
func (t *logTailer) flush() {
	if len(t.partial) == 0 {
		return
	}
	line := strings.TrimRight(string(t.partial), "\r")
	t.partial = nil
	if line != "" {
		t.emit(line)
	}
}
