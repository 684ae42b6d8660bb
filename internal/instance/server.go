package instance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shini4i/trusttunnel-gui/internal/emergency"
)

// maxMessageSize bounds a single request line.
const maxMessageSize = 64 * 1024

// ErrAlreadyRunning is returned by Start when another process answers on the socket.
var ErrAlreadyRunning = errors.New("another instance is already running")

// RequestHandler is called for each incoming request and returns the reply.
type RequestHandler func(req *Request) *Response

// DefaultSocketPath returns the per-user socket path: $XDG_RUNTIME_DIR when
// set, the temp directory otherwise.
func DefaultSocketPath() string {
	name := "trusttunnel-gui.sock"
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
		if uid := os.Getuid(); uid >= 0 {
			name = "trusttunnel-gui-" + strconv.Itoa(uid) + ".sock"
		}
	}
	return filepath.Join(dir, name)
}

// Server answers requests from later invocations.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler

	mu       sync.RWMutex
	conns    map[net.Conn]struct{}
	running  bool
	starting bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. Panics if handler is nil.
func NewServer(socketPath string, handler RequestHandler) *Server {
	if handler == nil {
		panic("instance: NewServer called with nil handler")
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[net.Conn]struct{}),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start claims the socket. A socket file nobody answers on is left over
// from a crashed instance and is replaced.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running || s.starting {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.starting = true
	s.mu.Unlock()

	clearStarting := func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}

	if IsRunning(s.socketPath) {
		clearStarting()
		return ErrAlreadyRunning
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		clearStarting()
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		clearStarting()
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		slog.Debug("Failed to restrict socket permissions", "path", s.socketPath, "error", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.starting = false
	s.mu.Unlock()

	slog.Info("Instance socket listening", "socket", s.socketPath)

	s.wg.Add(1)
	emergency.Go(s.acceptLoop)
	return nil
}

// Stop closes the listener and every open connection and removes the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if err := listener.Close(); err != nil {
		slog.Warn("Failed to close listener", "error", err)
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove socket file", "path", s.socketPath, "error", err)
	}
	slog.Info("Instance socket closed")
	return nil
}

// ClientCount returns the number of open connections.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			slog.Error("Accept error", "error", err)
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		emergency.Go(func() { s.serve(conn) })
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.untrack(conn)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			slog.Warn("Invalid instance request", "error", err)
			if err := enc.Encode(NewErrorResponse("", ErrCodeInvalidRequest, "invalid JSON")); err != nil {
				return
			}
			continue
		}
		slog.Debug("Instance request", "id", req.ID, "command", req.Command)
		resp := s.handler(&req)
		if resp == nil {
			resp = NewErrorResponse(req.ID, ErrCodeFailed, "no response")
		}
		if err := enc.Encode(resp); err != nil {
			slog.Warn("Failed to send instance response", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("Instance connection read error", "error", err)
	}
}
