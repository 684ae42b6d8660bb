// Package config manages application-level settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/fileutil"
)

const (
	// AppName is the application identifier used for XDG paths.
	AppName = "trusttunnel"
	// SettingsFileName is the name of the GUI settings file.
	SettingsFileName = "trusttunnel-ui.toml"
	// ClientConfigFileName is the generated client configuration passed with -c.
	ClientConfigFileName = "client.toml"
	// LogsDirName holds one subdirectory of session logs per credential.
	LogsDirName = "logs"
)

// Config represents the persisted GUI settings.
type Config struct {
	TunnelMode            string `toml:"tunnel_mode"`
	DNSEnabled            bool   `toml:"dns_enabled"`
	DNSStrategy           string `toml:"dns_strategy"`
	SelectedCredential    string `toml:"selected_credential,omitempty"`
	ClientBinary          string `toml:"client_binary,omitempty"`
	PollIntervalMillis    int    `toml:"poll_interval_ms"`
	PollThrottle          int    `toml:"poll_throttle"`
	LogCapacity           int    `toml:"log_capacity"`
	GracefulTimeoutMillis int    `toml:"graceful_timeout_ms"`
	ShowNotifications     bool   `toml:"show_notifications"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TunnelMode:            string(clientconfig.ModeTun),
		DNSEnabled:            true,
		DNSStrategy:           string(clientconfig.DNSAuto),
		PollIntervalMillis:    100,
		PollThrottle:          4,
		LogCapacity:           500,
		GracefulTimeoutMillis: 3000,
		ShowNotifications:     true,
	}
}

// Mode returns the parsed tunnel mode, falling back to TUN.
func (c *Config) Mode() clientconfig.Mode {
	m, err := clientconfig.ParseMode(c.TunnelMode)
	if err != nil {
		return clientconfig.ModeTun
	}
	return m
}

// Strategy returns the parsed DNS strategy, falling back to auto.
func (c *Config) Strategy() clientconfig.DNSStrategy {
	s, err := clientconfig.ParseDNSStrategy(c.DNSStrategy)
	if err != nil {
		return clientconfig.DNSAuto
	}
	return s
}

// PollInterval is the period of the host event loop timer.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// GracefulTimeout bounds how long a stopping client may take before it is force-killed.
func (c *Config) GracefulTimeout() time.Duration {
	return time.Duration(c.GracefulTimeoutMillis) * time.Millisecond
}

// Paths holds the resolved configuration locations.
type Paths struct {
	ConfigDir        string
	ConfigFile       string
	ClientConfigFile string
	LogsDir          string
}

// GetPaths returns the configuration paths following XDG Base Directory spec.
// Outside XDG environments the platform config directory is used.
func GetPaths() (*Paths, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user config directory: %w", err)
		}
		configHome = dir
	}
	return PathsIn(filepath.Join(configHome, AppName)), nil
}

// PathsIn lays out the configuration files under dir.
func PathsIn(dir string) *Paths {
	return &Paths{
		ConfigDir:        dir,
		ConfigFile:       filepath.Join(dir, SettingsFileName),
		ClientConfigFile: filepath.Join(dir, ClientConfigFileName),
		LogsDir:          filepath.Join(dir, LogsDirName),
	}
}

// EnsurePaths creates all necessary configuration directories.
func (p *Paths) EnsurePaths() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(p.LogsDir, 0700); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// Load reads the configuration from disk.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to disk atomically.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := clientconfig.ParseMode(c.TunnelMode); err != nil {
		return err
	}
	if _, err := clientconfig.ParseDNSStrategy(c.DNSStrategy); err != nil {
		return err
	}
	if c.PollIntervalMillis <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.PollThrottle <= 0 {
		return fmt.Errorf("poll throttle must be positive")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("log capacity must be positive")
	}
	if c.GracefulTimeoutMillis <= 0 {
		return fmt.Errorf("graceful timeout must be positive")
	}
	return nil
}

// Manager provides high-level configuration management.
// It is safe for concurrent use from multiple goroutines.
type Manager struct {
	paths  *Paths       // Immutable after construction
	config *Config      // Protected by mu
	mu     sync.RWMutex // Protects config only
}

// NewManager creates a new configuration manager.
// It ensures all necessary directories exist and loads the configuration.
func NewManager() (*Manager, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	return NewManagerAt(paths)
}

// NewManagerAt is NewManager with explicit paths.
func NewManagerAt(paths *Paths) (*Manager, error) {
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("failed to create config directories: %w", err)
	}

	cfg, err := Load(paths.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
	}

	return &Manager{
		paths:  paths,
		config: cfg,
	}, nil
}

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Paths returns the resolved configuration locations.
func (m *Manager) Paths() Paths {
	return *m.paths
}

// GetConfigDir returns the path to the configuration directory.
// Credential files are discovered here.
func (m *Manager) GetConfigDir() string {
	return m.paths.ConfigDir
}

// SaveConfig saves the current configuration to disk.
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Save(m.paths.ConfigFile, m.config)
}

// UpdateConfig replaces the configuration and saves it.
func (m *Manager) UpdateConfig(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return Save(m.paths.ConfigFile, m.config)
}

// UpdateField applies mutator to a copy, validates it, then commits and saves.
// If validation fails, the original config is preserved.
func (m *Manager) UpdateField(mutator func(cfg *Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := *m.config
	mutator(&configCopy)
	if err := configCopy.Validate(); err != nil {
		return err
	}

	*m.config = configCopy
	return Save(m.paths.ConfigFile, m.config)
}
