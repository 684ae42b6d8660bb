package profile

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
)

// ErrStoreNotFound is returned when no credential matches a selector.
var ErrStoreNotFound = errors.New("credential not found")

// reservedFiles live in the credentials directory but are not credentials.
var reservedFiles = map[string]bool{
	"client.toml":         true,
	"trusttunnel-ui.toml": true,
}

// Credential is an endpoint loaded from a file in the credentials directory.
type Credential struct {
	Path     string
	Name     string
	Endpoint *Endpoint
}

// ListError represents an error encountered while loading a specific file.
type ListError struct {
	Path string
	Err  error
}

// Error implements the error interface for ListError.
func (e ListError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ListError) Unwrap() error {
	return e.Err
}

// ListResult contains the loaded credentials plus per-file failures.
type ListResult struct {
	Credentials []*Credential
	Errors      []ListError
}

// Store discovers credential files in a directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the credentials directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Load reads one credential file.
func Load(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	ep, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Credential{Path: path, Name: CredentialName(ep, path), Endpoint: ep}, nil
}

// List loads every *.toml file except the application's own files,
// sorted case-insensitively by display name.
func (s *Store) List() (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".toml" || reservedFiles[name] {
			continue
		}
		path := filepath.Join(s.baseDir, name)
		cred, err := Load(path)
		if err != nil {
			slog.Warn("Skipping unreadable credential", "path", path, "error", err)
			result.Errors = append(result.Errors, ListError{Path: path, Err: err})
			continue
		}
		result.Credentials = append(result.Credentials, cred)
	}

	sort.SliceStable(result.Credentials, func(i, j int) bool {
		return strings.ToLower(result.Credentials[i].Name) < strings.ToLower(result.Credentials[j].Name)
	})
	slog.Debug("Scanned credentials", "dir", s.baseDir, "count", len(result.Credentials))
	return result, nil
}

// Find resolves a selector to a credential. The selector may be a file
// path, a file name in the store, or a credential display name.
func (s *Store) Find(selector string) (*Credential, error) {
	if selector == "" {
		return nil, ErrStoreNotFound
	}
	if isFile(selector) {
		return Load(selector)
	}
	for _, candidate := range []string{selector, selector + ".toml"} {
		path := filepath.Join(s.baseDir, filepath.Base(candidate))
		if isFile(path) {
			return Load(path)
		}
	}

	result, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, cred := range result.Credentials {
		if strings.EqualFold(cred.Name, selector) {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, selector)
}

// Import copies a credential file into the store, named after the
// credential. An identical existing copy is reused; otherwise a numeric
// suffix avoids overwriting a different file.
func (s *Store) Import(source string) (string, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	ep, err := Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", source, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := fileName(CredentialName(ep, source))
	dest := filepath.Join(s.baseDir, base+".toml")
	for counter := 1; fileutil.Exists(dest); counter++ {
		existing, err := os.ReadFile(dest)
		if err == nil && bytes.Equal(existing, content) {
			slog.Info("Identical credential already imported", "path", dest)
			return dest, nil
		}
		dest = filepath.Join(s.baseDir, fmt.Sprintf("%s_%d.toml", base, counter))
	}

	if err := fileutil.AtomicWrite(dest, content, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	slog.Info("Imported credential", "source", source, "path", dest)
	return dest, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
	if reservedFiles[name+".toml"] {
		name = "_" + name
	}
	return name
}
