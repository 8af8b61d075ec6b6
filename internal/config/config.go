package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	InboxDir string `toml:"inbox_dir"`
}

// API contains configuration for the HTTP API used by browser front-ends.
type API struct {
	Enabled        bool     `toml:"enabled"`
	Bind           string   `toml:"bind"`
	Token          string   `toml:"token"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Posting contains configuration for how the queue is drained.
type Posting struct {
	Mode                   string `toml:"mode"`
	Store                  string `toml:"store"`
	TriggerIntervalMinutes int    `toml:"trigger_interval_minutes"`
	DefaultDelaySeconds    int    `toml:"default_delay_seconds"`
	CaptionTemplate        string `toml:"caption_template"`
	FailureRetention       string `toml:"failure_retention"`
}

// Selectors names the page elements the automation driver interacts with.
type Selectors struct {
	ComposeEntry    string `toml:"compose_entry"`
	ComposeSurface  string `toml:"compose_surface"`
	AttachmentInput string `toml:"attachment_input"`
	UploadPreview   string `toml:"upload_preview"`
	SubmitControl   string `toml:"submit_control"`
}

// Browser contains configuration for the controlled browser tab.
type Browser struct {
	ControlURL               string    `toml:"control_url"`
	Bin                      string    `toml:"bin"`
	Headless                 bool      `toml:"headless"`
	TargetURL                string    `toml:"target_url"`
	InsertMode               string    `toml:"insert_mode"`
	PollIntervalMS           int       `toml:"poll_interval_ms"`
	LoadTimeoutSeconds       int       `toml:"load_timeout_seconds"`
	EntryTimeoutSeconds      int       `toml:"entry_timeout_seconds"`
	SurfaceTimeoutSeconds    int       `toml:"surface_timeout_seconds"`
	AttachmentTimeoutSeconds int       `toml:"attachment_timeout_seconds"`
	UploadTimeoutSeconds     int       `toml:"upload_timeout_seconds"`
	UploadFallbackSeconds    int       `toml:"upload_fallback_seconds"`
	SubmitTimeoutSeconds     int       `toml:"submit_timeout_seconds"`
	SettleSeconds            int       `toml:"settle_seconds"`
	Selectors                Selectors `toml:"selectors"`
}

// Inbox contains configuration for the drop-folder watcher.
type Inbox struct {
	Enabled       bool   `toml:"enabled"`
	ProcessedDir  string `toml:"processed_dir"`
	SettleMillis  int    `toml:"settle_ms"`
	CaptionSuffix string `toml:"caption_suffix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Runs           bool   `toml:"runs"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for autopost.
//
// Configuration sections by subsystem:
//   - Paths: data, log and inbox directories
//   - API: HTTP API bind address, bearer token and CORS origins
//   - Posting: drain mode, queue backend, delays and caption template
//   - Browser: DevTools connection, selectors and step timeouts
//   - Inbox: drop-folder ingestion
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Posting       Posting       `toml:"posting"`
	Browser       Browser       `toml:"browser"`
	Inbox         Inbox         `toml:"inbox"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/autopost/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is read first so environment fallbacks can come from it.
// The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("autopost.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation and
// verifies the data directory is writable.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Inbox.Enabled {
		dirs = append(dirs, c.Paths.InboxDir, c.Inbox.ProcessedDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if err := unix.Access(c.Paths.DataDir, unix.W_OK); err != nil {
		return fmt.Errorf("data directory %q is not writable: %w", c.Paths.DataDir, err)
	}
	return nil
}

// QueuePath returns the SQLite database location.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "autopost.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "autopost.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "autopost.pid")
}

// TriggerInterval returns the recurring trigger period.
func (c *Config) TriggerInterval() time.Duration {
	return time.Duration(c.Posting.TriggerIntervalMinutes) * time.Minute
}

// PollInterval returns the driver's condition polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Browser.PollIntervalMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
