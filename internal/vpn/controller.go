package vpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/dns"
	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
	"github.com/shini4i/trusttunnel-gui/internal/logging"
	"github.com/shini4i/trusttunnel-gui/internal/profile"
	"github.com/shini4i/trusttunnel-gui/internal/proxy"
)

// Controller defaults.
const (
	DefaultPollThrottle    = 4
	DefaultGracefulTimeout = 3 * time.Second
	defaultKillInterval    = 100 * time.Millisecond
	maxLineLength          = 1 << 20
)

// dnsDelegatedDetail is the DNS line shown when the client manages resolvers itself.
const dnsDelegatedDetail = "DNS managed by client (systemd-resolved)"

// Options configures a Controller.
type Options struct {
	// ConfigPath is where the generated client configuration is written.
	ConfigPath string
	// LogsDir holds the per-session log files. Empty disables them.
	LogsDir string
	// ClientBinary overrides the client search when set.
	ClientBinary string
	// LogCapacity bounds the process log. Zero selects DefaultLogCapacity.
	LogCapacity int
	// PollThrottle makes Tick evaluate every n-th call. Zero selects DefaultPollThrottle.
	PollThrottle int
	// GracefulTimeout is how long a terminated client may take to exit.
	GracefulTimeout time.Duration
	// KillPollInterval paces exit checks while stopping a child.
	KillPollInterval time.Duration
	// Now is the clock. Nil selects time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollThrottle <= 0 {
		o.PollThrottle = DefaultPollThrottle
	}
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = DefaultGracefulTimeout
	}
	if o.KillPollInterval <= 0 {
		o.KillPollInterval = defaultKillInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ConnectRequest describes one connection attempt.
type ConnectRequest struct {
	Endpoint *profile.Endpoint
	// CredentialName keys the session log directory.
	CredentialName string
	Mode           clientconfig.Mode
	DNSEnabled     bool
	DNSStrategy    clientconfig.DNSStrategy
}

// Status is a consistent view of the state and its detail text.
type Status struct {
	State  ConnectionState
	Detail string
}

// Controller owns the client process and every system setting changed on
// its behalf. Its methods are safe for concurrent use; state change
// callbacks run outside the lock.
type Controller struct {
	services Services
	opts     Options
	log      *ProcessLog

	mu     sync.Mutex
	state  ConnectionState
	detail string
	status atomic.Pointer[Status]

	child       Child
	stopReaders context.CancelFunc
	binary      string
	mode        clientconfig.Mode
	dnsEnabled  bool
	delegateDNS bool
	upstreams   []string
	sessionID   string

	proxyOverride *proxy.Override
	dnsOverride   *dns.Override

	ticks               uint64
	disconnectingSince  time.Time
	postConnectReported bool

	onStateChange func(old, new ConnectionState)
	pending       []func()
}

// NewController creates a controller in the Disconnected state.
func NewController(services Services, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		services: services,
		opts:     opts,
		log:      NewProcessLog(opts.LogCapacity),
		state:    stateDisconnected,
	}
	c.publishLocked()
	return c
}

// State returns the current connection state without blocking on the
// controller lock.
func (c *Controller) State() ConnectionState {
	return c.status.Load().State
}

// Detail returns the status detail text.
func (c *Controller) Detail() string {
	return c.status.Load().Detail
}

// Status returns the state and detail as one snapshot.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Mode returns the mode of the current or last session.
func (c *Controller) Mode() clientconfig.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Log returns the process log of the current session.
func (c *Controller) Log() *ProcessLog {
	return c.log
}

// OnStateChange registers a callback for state and detail changes.
// old and new are equal when only the detail changed.
func (c *Controller) OnStateChange(callback func(old, new ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = callback
}

// unlock releases c.mu and then runs the callbacks queued while it was held.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (c *Controller) publishLocked() {
	c.status.Store(&Status{State: c.state, Detail: c.detail})
}

// setStateLocked moves to next when the transition is allowed. Staying in
// the same phase is always allowed and only updates the reason and detail.
func (c *Controller) setStateLocked(next ConnectionState, detail string) {
	if next.Phase != c.state.Phase && !IsValidTransition(c.state.Phase, next.Phase) {
		slog.Warn("Ignoring invalid state transition", "from", c.state.String(), "to", next.String())
		return
	}
	old := c.state
	changed := old != next || c.detail != detail
	c.state = next
	c.detail = detail
	c.publishLocked()
	if !changed {
		return
	}

	if old != next {
		slog.Info("Connection state changed", "from", old.String(), "to", next.String(), "session", c.sessionID)
	} else {
		slog.Debug("Status detail changed", "state", next.String(), "session", c.sessionID)
	}
	if cb := c.onStateChange; cb != nil {
		c.pending = append(c.pending, func() { cb(old, next) })
	}
}

func (c *Controller) setDetailLocked(detail string) {
	c.setStateLocked(c.state, detail)
}

// failLocked enters the error state described by se and returns it.
func (c *Controller) failLocked(se *StatusError) error {
	slog.Warn("Connect failed", "reason", se.Label, "error", se.Err)
	c.setStateLocked(Failed(se.Label), se.Detail)
	return se
}

// Connect validates the request, writes the client configuration and
// spawns the client. It returns ErrBusy while a session is active and a
// *StatusError when the attempt failed, in which case the state is Error.
func (c *Controller) Connect(ctx context.Context, req ConnectRequest) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.state.CanConnect() {
		slog.Debug("Connect ignored while busy", "state", c.state.String())
		return ErrBusy
	}
	slog.Info("Connecting", "mode", req.Mode, "credential", req.CredentialName)

	binary, ok := c.services.FindClientBinary(c.opts.ClientBinary)
	if !ok {
		return c.failLocked(binaryNotFound(clientImage))
	}
	if req.Mode.IsTun() && !c.services.CheckTunDevice() {
		return c.failLocked(tunUnavailable())
	}
	if req.Mode.NeedsElevation() && !c.services.CheckElevation() {
		return c.failLocked(elevationUnavailable())
	}
	if req.Endpoint == nil {
		return c.failLocked(&StatusError{Label: "No credential selected", Detail: "Import or select a credential file"})
	}
	if err := req.Endpoint.ValidateFields(); err != nil {
		var fe *profile.FieldError
		if errors.As(err, &fe) {
			return c.failLocked(&StatusError{Label: fe.Label, Detail: fe.Detail, Err: err})
		}
		return c.failLocked(&StatusError{Label: "Invalid credential", Detail: err.Error(), Err: err})
	}

	if c.child != nil {
		slog.Info("Stopping previous client before reconnecting", "pid", c.child.ID())
		c.clearOverridesLocked(ctx)
		stopChildInBackground(c.services, c.takeChildLocked(), c.opts.GracefulTimeout, c.opts.KillPollInterval)
	}

	delegate := false
	if req.Mode.IsTun() && req.DNSEnabled {
		delegate = c.shouldDelegateDNS(ctx, req.DNSStrategy)
	}
	cfg := clientconfig.Build(req.Endpoint, req.Mode, clientconfig.BuildOptions{
		DNSEnabled:  req.DNSEnabled,
		DelegateDNS: delegate,
	})
	data, err := cfg.Marshal()
	if err != nil {
		msg := fmt.Sprintf("Configuration serialization error: %v", err)
		return c.failLocked(&StatusError{Label: msg, Detail: msg, Err: err})
	}
	redacted := clientconfig.Redact(string(data))
	slog.Debug("Generated client configuration", "path", c.opts.ConfigPath, "config", redacted)
	if err := fileutil.AtomicWrite(c.opts.ConfigPath, data, 0o600); err != nil {
		msg := fmt.Sprintf("Failed to write config: %v", err)
		return c.failLocked(&StatusError{Label: msg, Detail: msg, Err: err})
	}

	c.log.Reset()
	c.binary = binary
	c.mode = req.Mode
	c.dnsEnabled = req.DNSEnabled
	c.delegateDNS = delegate
	c.upstreams = cfg.DNSUpstreams
	c.sessionID = uuid.NewString()
	c.postConnectReported = false
	c.ticks = 0

	sessionLog := c.openSessionLog(req, redacted)
	c.setStateLocked(stateConnecting, "")

	child, err := c.services.Spawn(ctx, binary, c.opts.ConfigPath, req.Mode.NeedsElevation())
	if err != nil {
		_ = sessionLog.WriteLine("# spawn failed: " + err.Error())
		_ = sessionLog.Close()
		return c.failLocked(spawnFailed(err))
	}
	c.child = child
	c.startReadersLocked(child, sessionLog)
	slog.Info("Client started", "pid", child.ID(), "elevated", child.IsElevated(),
		"mode", req.Mode, "session", c.sessionID, "log", sessionLog.Path())
	return nil
}

// shouldDelegateDNS decides whether the client itself changes system DNS.
func (c *Controller) shouldDelegateDNS(ctx context.Context, strategy clientconfig.DNSStrategy) bool {
	switch strategy {
	case clientconfig.DNSClient:
		return true
	case clientconfig.DNSSystem:
		return false
	}
	return c.services.ClientManagesDNS(ctx)
}

func (c *Controller) openSessionLog(req ConnectRequest, redactedConfig string) *logging.SessionLog {
	if c.opts.LogsDir == "" {
		return nil
	}
	now := c.opts.Now()
	sl, err := logging.OpenSessionLog(c.opts.LogsDir, req.CredentialName, now)
	if err != nil {
		slog.Warn("Session log unavailable", "error", err)
		return nil
	}
	_ = sl.WriteLine(fmt.Sprintf("# session %s mode=%s started %s",
		c.sessionID, req.Mode, now.UTC().Format(time.RFC3339)))
	for _, line := range strings.Split(strings.TrimRight(redactedConfig, "\n"), "\n") {
		_ = sl.WriteLine("# " + line)
	}
	return sl
}

// startReadersLocked feeds client output into the process log and the
// session log. The session log is closed once every reader is done.
func (c *Controller) startReadersLocked(child Child, sessionLog *logging.SessionLog) {
	processLog := c.log
	push := func(line string) {
		kind := processLog.PushLine(line)
		if kind != LineNormal {
			slog.Debug("Client output", "kind", kind.String(), "line", line)
		}
		if err := sessionLog.WriteLine(line); err != nil && !errors.Is(err, os.ErrClosed) {
			slog.Debug("Session log write failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stopReaders = cancel

	var wg sync.WaitGroup
	if ec, ok := child.(*ElevatedChild); ok {
		wg.Add(1)
		emergency.Go(func() {
			defer wg.Done()
			newLogTailer(ec.LogPath, ec.MarkerPath, push).run(ctx)
			ec.Cleanup()
		})
	} else {
		stdout, stderr := child.TakeOutput()
		for _, r := range []io.ReadCloser{stdout, stderr} {
			if r == nil {
				continue
			}
			wg.Add(1)
			emergency.Go(func() {
				defer wg.Done()
				readLines(r, push)
			})
		}
	}

	emergency.Go(func() {
		wg.Wait()
		cancel()
		_ = sessionLog.Close()
	})
}

func readLines(r io.ReadCloser, push func(string)) {
	defer func() { _ = r.Close() }()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		push(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.Debug("Client output reader stopped", "error", err)
	}
}

// Tick reconciles the controller with the client. Call it on a fixed
// interval; it returns whether the session is still active. Only every
// PollThrottle-th call does work.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	defer c.unlock()

	if !c.state.IsActive() {
		return false
	}
	c.ticks++
	if c.ticks%uint64(c.opts.PollThrottle) != 0 {
		return true
	}

	if c.child != nil {
		if status, done := c.child.TryWait(); done {
			c.handleExitLocked(ctx, status)
			return c.state.IsActive()
		}
	}

	switch c.state.Phase {
	case PhaseConnecting:
		c.pollConnectingLocked(ctx)
	case PhaseConnected:
		c.pollConnectedLocked()
	case PhaseDisconnecting:
		c.pollDisconnectingLocked()
	}
	return c.state.IsActive()
}

func (c *Controller) handleExitLocked(ctx context.Context, status ExitStatus) {
	c.takeChildLocked()
	c.clearOverridesLocked(ctx)
	slog.Info("Client exited", "status", status.String(), "state", c.state.String(), "session", c.sessionID)

	switch {
	case c.state.Phase == PhaseDisconnecting:
		c.setStateLocked(stateDisconnected, "")
	case status.Success():
		c.setStateLocked(stateDisconnected, "")
	default:
		c.setStateLocked(Failed(fmt.Sprintf("Exited (%s)", status.CodeLabel())), exitDetail(status, c.binary))
	}
}

func (c *Controller) pollConnectingLocked(ctx context.Context) {
	snap := c.log.Snapshot()
	if snap.Error != "" {
		slog.Warn("Client reported a connection error", "line", snap.Error)
		c.clearOverridesLocked(ctx)
		stopChildInBackground(c.services, c.takeChildLocked(), c.opts.GracefulTimeout, c.opts.KillPollInterval)
		c.setStateLocked(Failed("Connection failed"), snap.Error)
		return
	}
	if snap.Connected {
		c.enterConnectedLocked(ctx)
	}
}

// enterConnectedLocked applies the overrides the mode needs and moves to Connected.
func (c *Controller) enterConnectedLocked(ctx context.Context) {
	var extra string
	if c.mode.SetsSystemProxy() && !c.proxyOverride.Active() {
		host, port := proxy.ParseHostPort(clientconfig.ProxyListenAddress)
		c.proxyOverride, extra = proxy.Apply(ctx, c.services.ProxyBackends(ctx), host, port)
	}
	if c.mode.IsTun() && c.dnsEnabled {
		extra = c.applyDNSLocked(ctx)
	}
	c.setStateLocked(stateConnected, connectedDetail(c.mode, extra))
}

func (c *Controller) applyDNSLocked(ctx context.Context) string {
	if c.delegateDNS {
		return dnsDelegatedDetail
	}
	if c.dnsOverride.Active() {
		return ""
	}
	backend := c.services.DNSBackend(ctx)
	if backend == nil {
		slog.Warn("No DNS backend available, system DNS unchanged")
		return "No DNS backend available, system DNS unchanged"
	}
	override, detail, err := dns.Apply(ctx, backend, c.upstreams)
	if err != nil {
		return "DNS override failed: " + err.Error()
	}
	c.dnsOverride = override
	return detail
}

func (c *Controller) pollConnectedLocked() {
	if c.postConnectReported {
		return
	}
	snap := c.log.Snapshot()
	if snap.PostConnectError == "" {
		return
	}
	c.postConnectReported = true
	slog.Warn("Client reported an error after connecting", "line", snap.PostConnectError)
	c.setDetailLocked(c.detail + "\nWarning: " + snap.PostConnectError)
}

func (c *Controller) pollDisconnectingLocked() {
	if c.opts.Now().Sub(c.disconnectingSince) < c.opts.GracefulTimeout {
		return
	}
	slog.Warn("Client did not exit in time, forcing disconnect", "timeout", c.opts.GracefulTimeout)
	stopChildInBackground(c.services, c.takeChildLocked(), 0, c.opts.KillPollInterval)
	c.setStateLocked(stateDisconnected, "Force disconnected (process did not exit in time)")
}

// Disconnect restores system settings and asks the client to exit. The
// next ticks finish the transition. It is a no-op while disconnecting.
func (c *Controller) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.unlock()

	switch c.state.Phase {
	case PhaseDisconnecting, PhaseDisconnected:
		return
	}
	slog.Info("Disconnecting", "state", c.state.String(), "session", c.sessionID)
	c.clearOverridesLocked(ctx)

	if c.child == nil {
		c.setStateLocked(stateDisconnected, "")
		return
	}
	if status, done := c.child.TryWait(); done {
		c.takeChildLocked()
		c.setStateLocked(stateDisconnected, fmt.Sprintf("Client already exited (%s)", status))
		return
	}

	child := c.child
	if err := c.services.Terminate(ctx, child); err != nil {
		slog.Warn("Graceful terminate failed, forcing", "pid", child.ID(), "error", err)
		emergency.Go(func() {
			if err := c.services.ForceKill(context.WithoutCancel(ctx), child); err != nil {
				slog.Error("Forced kill failed", "pid", child.ID(), "error", err)
			}
		})
	}
	c.disconnectingSince = c.opts.Now()
	c.setStateLocked(stateDisconnecting, "")
}

// Shutdown tears the session down synchronously, waiting a bounded time
// for the client to exit. Call it before the program exits.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.unlock()

	c.clearOverridesLocked(ctx)
	child := c.takeChildLocked()
	if child != nil {
		slog.Info("Stopping client before exit", "pid", child.ID())
		stopChild(ctx, c.services, child, c.opts.GracefulTimeout, c.opts.KillPollInterval)
	}
	if c.stopReaders != nil {
		c.stopReaders()
		c.stopReaders = nil
	}
	if c.state.IsActive() {
		c.setStateLocked(stateDisconnected, "")
	}
}

// EmergencyCleanup restores system settings without waiting for a
// concurrent operation to release the controller.
func (c *Controller) EmergencyCleanup(ctx context.Context) {
	if c.mu.TryLock() {
		c.clearOverridesLocked(ctx)
		if c.child != nil {
			if err := c.child.Kill(); err != nil {
				slog.Warn("Emergency kill failed", "error", err)
			}
		}
		c.mu.Unlock()
	} else {
		slog.Warn("Controller busy, skipping session cleanup")
	}
	c.services.EmergencyCleanup(ctx)
}

// clearOverridesLocked restores proxy and DNS settings. Each override
// clears at most once.
func (c *Controller) clearOverridesLocked(ctx context.Context) {
	c.proxyOverride.Clear(ctx)
	c.proxyOverride = nil
	c.dnsOverride.Clear(ctx)
	c.dnsOverride = nil
}

// takeChildLocked releases ownership of the child.
func (c *Controller) takeChildLocked() Child {
	child := c.child
	c.child = nil
	return child
}
