package instance

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a call when the context carries no deadline.
const DefaultTimeout = 10 * time.Second

// ErrNotRunning is returned by Dial when no instance answers.
var ErrNotRunning = errors.New("no running instance")

// Client talks to the running instance. Calls are serialized.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Dial connects to the instance listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	return &Client{conn: conn, scanner: scanner}, nil
}

// IsRunning reports whether an instance answers on socketPath.
func IsRunning(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Call sends cmd and waits for the matching response.
func (c *Client) Call(ctx context.Context, cmd Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{ID: uuid.NewString(), Command: cmd}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	for c.scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		if resp.ID != req.ID && resp.ID != "" {
			continue
		}
		return &resp, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return nil, errors.New("connection closed by instance")
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
