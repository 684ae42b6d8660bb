package vpn

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
)

// MockChild implements Child for testing. Output is written through pipes
// and the exit is driven by Exit.
type MockChild struct {
	mu sync.Mutex

	id      int
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter
	taken   bool

	done   chan struct{}
	status ExitStatus
	exited bool

	killed     int
	killErr    error
	exitOnKill bool
}

// NewMockChild creates a running mock child that exits when killed.
func NewMockChild(id int) *MockChild {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	return &MockChild{
		id:         id,
		stdoutR:    stdoutR,
		stdoutW:    stdoutW,
		stderrR:    stderrR,
		stderrW:    stderrW,
		done:       make(chan struct{}),
		exitOnKill: true,
	}
}

// WriteStdout writes a line to stdout. It blocks until a reader consumes it.
func (m *MockChild) WriteStdout(line string) {
	_, _ = m.stdoutW.Write([]byte(line + "\n"))
}

// WriteStderr writes a line to stderr.
func (m *MockChild) WriteStderr(line string) {
	_, _ = m.stderrW.Write([]byte(line + "\n"))
}

// Exit finishes the process with code. Later calls are ignored.
func (m *MockChild) Exit(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return
	}
	m.exited = true
	m.status = ExitStatus{Code: code}
	_ = m.stdoutW.Close()
	_ = m.stderrW.Close()
	close(m.done)
}

func (m *MockChild) ID() int { return m.id }

func (m *MockChild) IsElevated() bool { return false }

func (m *MockChild) TryWait() (ExitStatus, bool) {
	select {
	case <-m.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.status, true
	default:
		return ExitStatus{}, false
	}
}

func (m *MockChild) Kill() error {
	m.mu.Lock()
	m.killed++
	err := m.killErr
	exit := m.exitOnKill
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if exit {
		m.Exit(-1)
	}
	return nil
}

func (m *MockChild) Wait() ExitStatus {
	<-m.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockChild) TakeOutput() (io.ReadCloser, io.ReadCloser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken {
		return nil, nil
	}
	m.taken = true
	return m.stdoutR, m.stderrR
}

// KillCount returns how many times Kill was called.
func (m *MockChild) KillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killed
}

// HasExited reports whether Exit was called.
func (m *MockChild) HasExited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exited
}

type spawnCall struct {
	binary     string
	configPath string
	elevate    bool
}

// fakeServices implements Services for testing.
type fakeServices struct {
	mu sync.Mutex

	binary           string
	binaryFound      bool
	tun              bool
	elevation        bool
	clientManagesDNS bool
	spawnErr         error
	terminateErr     error
	exitOnTerminate  bool

	proxyBackends []proxy.Backend
	dnsBackend    dns.Backend

	spawns         []spawnCall
	children       []*MockChild
	terminated     int
	forceKilled    int
	dnsQueries     int
	emergencyCalls int
	startupCalls   int
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		binary:          "/usr/bin/trusttunnel_client",
		binaryFound:     true,
		tun:             true,
		elevation:       true,
		exitOnTerminate: true,
	}
}

func (f *fakeServices) FindClientBinary(string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binary, f.binaryFound
}

func (f *fakeServices) CheckTunDevice() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tun
}

func (f *fakeServices) CheckElevation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elevation
}

func (f *fakeServices) CheckBinaryWorks(context.Context, string, bool) error { return nil }

func (f *fakeServices) Spawn(_ context.Context, binary, configPath string, elevate bool) (Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, spawnCall{binary: binary, configPath: configPath, elevate: elevate})
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	child := NewMockChild(1000 + len(f.children))
	f.children = append(f.children, child)
	return child, nil
}

func (f *fakeServices) Terminate(_ context.Context, child Child) error {
	f.mu.Lock()
	f.terminated++
	err := f.terminateErr
	exit := f.exitOnTerminate
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if mc, ok := child.(*MockChild); ok && exit {
		mc.Exit(0)
	}
	return nil
}

func (f *fakeServices) ForceKill(_ context.Context, child Child) error {
	f.mu.Lock()
	f.forceKilled++
	f.mu.Unlock()
	if mc, ok := child.(*MockChild); ok {
		mc.Exit(-1)
	}
	return nil
}

func (f *fakeServices) ProxyBackends(context.Context) []proxy.Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxyBackends
}

func (f *fakeServices) DNSBackend(context.Context) dns.Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dnsBackend
}

func (f *fakeServices) ClientManagesDNS(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dnsQueries++
	return f.clientManagesDNS
}

func (f *fakeServices) StartupCleanup(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startupCalls++
}

func (f *fakeServices) EmergencyCleanup(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emergencyCalls++
}

func (f *fakeServices) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

func (f *fakeServices) lastChild() *MockChild {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.children) == 0 {
		return nil
	}
	return f.children[len(f.children)-1]
}

func (f *fakeServices) terminateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// fakeProxyBackend records Set and Clear calls.
type fakeProxyBackend struct {
	mu     sync.Mutex
	name   string
	setErr error
	sets   int
	clears int
	host   string
	port   int
}

func (b *fakeProxyBackend) Name() string { return b.name }

func (b *fakeProxyBackend) Set(_ context.Context, host string, port int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	b.host, b.port = host, port
	if b.setErr != nil {
		return "", b.setErr
	}
	return b.name + " proxy set", nil
}

func (b *fakeProxyBackend) Clear(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
}

func (b *fakeProxyBackend) counts() (sets, clears int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets, b.clears
}

// fakeDNSBackend records Set and Clear calls.
type fakeDNSBackend struct {
	mu      sync.Mutex
	setErr  error
	sets    int
	clears  int
	servers []string
}

func (b *fakeDNSBackend) Name() string { return "fake-dns" }

func (b *fakeDNSBackend) Set(_ context.Context, servers []string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	b.servers = servers
	if b.setErr != nil {
		return "", b.setErr
	}
	return "DNS set to 1.1.1.1", nil
}

func (b *fakeDNSBackend) Clear(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
}

func (b *fakeDNSBackend) counts() (sets, clears int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets, b.clears
}

var errFakeSet = errors.New("gsettings: not available")
