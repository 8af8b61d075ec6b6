package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePosting(); err != nil {
		return err
	}
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePosting() error {
	switch c.Posting.Mode {
	case ModeTrigger, ModeBatch:
	default:
		return fmt.Errorf("posting.mode: unsupported value %q (want %q or %q)", c.Posting.Mode, ModeTrigger, ModeBatch)
	}
	switch c.Posting.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("posting.store: unsupported value %q (want %q or %q)", c.Posting.Store, StoreSQLite, StoreMemory)
	}
	if c.Posting.Store == StoreMemory && c.Posting.Mode == ModeTrigger {
		return errors.New("posting.store = \"memory\" requires posting.mode = \"batch\"")
	}
	switch c.Posting.FailureRetention {
	case RetentionRetain, RetentionDrop:
	default:
		return fmt.Errorf("posting.failure_retention: unsupported value %q (want %q or %q)", c.Posting.FailureRetention, RetentionRetain, RetentionDrop)
	}
	if c.Posting.TriggerIntervalMinutes < 1 {
		return errors.New("posting.trigger_interval_minutes must be at least 1")
	}
	if c.Posting.DefaultDelaySeconds < 0 {
		return errors.New("posting.default_delay_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateBrowser() error {
	switch c.Browser.InsertMode {
	case InsertAtomic, InsertTyped:
	default:
		return fmt.Errorf("browser.insert_mode: unsupported value %q (want %q or %q)", c.Browser.InsertMode, InsertAtomic, InsertTyped)
	}
	if c.Browser.UploadFallbackSeconds < 0 {
		return errors.New("browser.upload_fallback_seconds must be non-negative")
	}
	if c.Browser.SettleSeconds < 0 {
		return errors.New("browser.settle_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
