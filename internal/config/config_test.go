package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"autopost/internal/config"
)

func TestLoadDefaultConfigUsesEnvFallbacksAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("AUTOPOST_API_TOKEN", "secret-token")
	t.Setenv("AUTOPOST_NTFY_TOPIC", "https://ntfy.example/autopost")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "autopost")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Inbox.ProcessedDir != filepath.Join(cfg.Paths.InboxDir, "processed") {
		t.Fatalf("unexpected processed dir: %q", cfg.Inbox.ProcessedDir)
	}
	if cfg.API.Token != "secret-token" {
		t.Fatalf("expected API token from env, got %q", cfg.API.Token)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/autopost" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Posting.Mode != config.ModeTrigger {
		t.Fatalf("expected trigger mode by default, got %q", cfg.Posting.Mode)
	}
	if cfg.Posting.TriggerIntervalMinutes != 15 {
		t.Fatalf("expected 15 minute trigger default, got %d", cfg.Posting.TriggerIntervalMinutes)
	}
	if cfg.Posting.DefaultDelaySeconds != 5 {
		t.Fatalf("expected 5 second delay default, got %d", cfg.Posting.DefaultDelaySeconds)
	}
	if cfg.Browser.InsertMode != config.InsertAtomic {
		t.Fatalf("expected atomic insert default, got %q", cfg.Browser.InsertMode)
	}
	if cfg.QueuePath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue path %q", cfg.QueuePath())
	}
}

func TestLoadCustomPathParsesTOML(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "custom.toml")
	content := `
[paths]
data_dir = "~/autopost-data"

[posting]
mode = "BATCH"
failure_retention = "drop"
caption_template = "regex: (\\d+)\nPart \\1"

[browser]
insert_mode = "typed"

[browser.selectors]
submit_control = "#post"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "autopost-data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "autopost", "logs") {
		t.Fatalf("unexpected log dir %q", cfg.Paths.LogDir)
	}
	if cfg.Posting.Mode != config.ModeBatch {
		t.Fatalf("expected mode normalized to batch, got %q", cfg.Posting.Mode)
	}
	if cfg.Posting.FailureRetention != config.RetentionDrop {
		t.Fatalf("unexpected retention %q", cfg.Posting.FailureRetention)
	}
	if !strings.HasPrefix(cfg.Posting.CaptionTemplate, "regex:") {
		t.Fatalf("unexpected caption template %q", cfg.Posting.CaptionTemplate)
	}
	if cfg.Browser.Selectors.SubmitControl != "#post" {
		t.Fatalf("unexpected submit selector %q", cfg.Browser.Selectors.SubmitControl)
	}
	if cfg.Browser.Selectors.ComposeSurface == "" {
		t.Fatal("expected compose surface selector default to be kept")
	}
}

func TestValidateRejectsUnsupportedValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"mode", func(c *config.Config) { c.Posting.Mode = "burst" }},
		{"store", func(c *config.Config) { c.Posting.Store = "redis" }},
		{"memory trigger", func(c *config.Config) { c.Posting.Store = config.StoreMemory }},
		{"retention", func(c *config.Config) { c.Posting.FailureRetention = "archive" }},
		{"interval", func(c *config.Config) { c.Posting.TriggerIntervalMinutes = 0 }},
		{"delay", func(c *config.Config) { c.Posting.DefaultDelaySeconds = -1 }},
		{"insert", func(c *config.Config) { c.Browser.InsertMode = "paste" }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Posting.TriggerIntervalMinutes != 15 {
		t.Fatalf("unexpected sample trigger interval %d", cfg.Posting.TriggerIntervalMinutes)
	}

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if string(data) != config.SampleConfig() {
		t.Fatal("written sample differs from embedded sample")
	}
}

func TestEnsureDirectoriesCreatesInboxWhenEnabled(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Inbox.Enabled = true
	cfg.Inbox.ProcessedDir = filepath.Join(base, "inbox", "processed")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.InboxDir, cfg.Inbox.ProcessedDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
