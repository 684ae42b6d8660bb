package vpn

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *lineSink) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestLogTailer_Feed(t *testing.T) {
	sink := &lineSink{}
	tl := newLogTailer("", "", sink.add)

	tl.feed([]byte{0xEF, 0xBB})
	tl.feed([]byte{0xBF})
	tl.feed([]byte("first line\r\nsec"))
	assert.Equal(t, []string{"first line"}, sink.get())

	tl.feed([]byte("ond line\r\n\r\nthird"))
	assert.Equal(t, []string{"first line", "second line", ""}, sink.get())

	tl.flush()
	assert.Equal(t, []string{"first line", "second line", "", "third"}, sink.get())
}

func TestLogTailer_FeedWithoutBOM(t *testing.T) {
	sink := &lineSink{}
	tl := newLogTailer("", "", sink.add)

	tl.feed([]byte("E"))
	tl.feed([]byte("rror: boom\n"))

	assert.Equal(t, []string{"Error: boom"}, sink.get())
}

func TestLogTailer_RunStopsAtMarker(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "client.log")
	markerPath := filepath.Join(dir, "client.exit")
	require.NoError(t, os.WriteFile(logPath, append([]byte{0xEF, 0xBB, 0xBF}, "Starting\r\n"...), 0o600))

	sink := &lineSink{}
	tl := newLogTailer(logPath, markerPath, sink.add)
	tl.poll = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		tl.run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("SOCKS listener started\r\ntail without newline")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(markerPath, []byte("0\r\n"), 0o600))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not stop after the exit marker appeared")
	}
	assert.Equal(t, []string{"Starting", "SOCKS listener started", "tail without newline"}, sink.get())
}

func TestLogTailer_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	tl := newLogTailer(filepath.Join(dir, "missing.log"), filepath.Join(dir, "missing.exit"), func(string) {})
	tl.poll = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tl.run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not stop after cancellation")
	}
}
