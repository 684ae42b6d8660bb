package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionTimestampLayout names session log files, always in UTC.
const SessionTimestampLayout = "2006-01-02_15-04-05"

// SessionLog is the raw client output of one connection attempt.
// WriteLine is safe to call from the stdout and stderr readers concurrently.
type SessionLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// SanitizeName makes a credential display name usable as a directory name.
func SanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

// SessionLogPath returns logsDir/<sanitized name>/<timestamp>.log.
func SessionLogPath(logsDir, credentialName string, now time.Time) string {
	return filepath.Join(logsDir, SanitizeName(credentialName),
		now.UTC().Format(SessionTimestampLayout)+".log")
}

// OpenSessionLog creates the session log file and its directory.
func OpenSessionLog(logsDir, credentialName string, now time.Time) (*SessionLog, error) {
	path := SessionLogPath(logsDir, credentialName, now)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	// #nosec G304 -- path is derived from the app config dir
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &SessionLog{file: f, path: path}, nil
}

// Path returns the file location.
func (s *SessionLog) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// WriteLine appends line followed by a newline. A nil SessionLog discards.
func (s *SessionLog) WriteLine(line string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.ErrClosed
	}
	_, err := s.file.WriteString(line + "\n")
	return err
}

// Close flushes and closes the file. Safe to call more than once.
func (s *SessionLog) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
