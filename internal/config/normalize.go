package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizePosting()
	c.normalizeBrowser()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = filepath.Join(c.Paths.DataDir, "inbox")
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Inbox.ProcessedDir) == "" {
		c.Inbox.ProcessedDir = filepath.Join(c.Paths.InboxDir, defaultInboxProcessedName)
	}
	if c.Inbox.ProcessedDir, err = expandPath(c.Inbox.ProcessedDir); err != nil {
		return fmt.Errorf("inbox.processed_dir: %w", err)
	}
	if c.Inbox.SettleMillis <= 0 {
		c.Inbox.SettleMillis = defaultInboxSettleMillis
	}
	c.Inbox.CaptionSuffix = strings.TrimSpace(c.Inbox.CaptionSuffix)
	if c.Inbox.CaptionSuffix == "" {
		c.Inbox.CaptionSuffix = defaultInboxCaptionSuffix
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("AUTOPOST_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	origins := c.API.AllowedOrigins[:0]
	for _, origin := range c.API.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.API.AllowedOrigins = origins
}

func (c *Config) normalizePosting() {
	c.Posting.Mode = strings.ToLower(strings.TrimSpace(c.Posting.Mode))
	if c.Posting.Mode == "" {
		c.Posting.Mode = defaultPostingMode
	}
	c.Posting.Store = strings.ToLower(strings.TrimSpace(c.Posting.Store))
	if c.Posting.Store == "" {
		c.Posting.Store = defaultPostingStore
	}
	c.Posting.FailureRetention = strings.ToLower(strings.TrimSpace(c.Posting.FailureRetention))
	if c.Posting.FailureRetention == "" {
		c.Posting.FailureRetention = defaultFailureRetention
	}
	if c.Posting.TriggerIntervalMinutes == 0 {
		c.Posting.TriggerIntervalMinutes = defaultTriggerIntervalMinutes
	}
}

func (c *Config) normalizeBrowser() {
	c.Browser.ControlURL = strings.TrimSpace(c.Browser.ControlURL)
	if c.Browser.ControlURL == "" {
		if value, ok := os.LookupEnv("AUTOPOST_BROWSER_URL"); ok {
			c.Browser.ControlURL = strings.TrimSpace(value)
		}
	}
	c.Browser.Bin = strings.TrimSpace(c.Browser.Bin)
	c.Browser.TargetURL = strings.TrimSpace(c.Browser.TargetURL)
	if c.Browser.TargetURL == "" {
		c.Browser.TargetURL = defaultTargetURL
	}
	c.Browser.InsertMode = strings.ToLower(strings.TrimSpace(c.Browser.InsertMode))
	if c.Browser.InsertMode == "" {
		c.Browser.InsertMode = defaultInsertMode
	}
	if c.Browser.PollIntervalMS <= 0 {
		c.Browser.PollIntervalMS = defaultPollIntervalMS
	}
	setDefaultInt(&c.Browser.LoadTimeoutSeconds, defaultLoadTimeoutSeconds)
	setDefaultInt(&c.Browser.EntryTimeoutSeconds, defaultEntryTimeoutSeconds)
	setDefaultInt(&c.Browser.SurfaceTimeoutSeconds, defaultSurfaceTimeoutSeconds)
	setDefaultInt(&c.Browser.AttachmentTimeoutSeconds, defaultAttachmentTimeoutSeconds)
	setDefaultInt(&c.Browser.UploadTimeoutSeconds, defaultUploadTimeoutSeconds)
	setDefaultInt(&c.Browser.SubmitTimeoutSeconds, defaultSubmitTimeoutSeconds)

	sel := &c.Browser.Selectors
	setDefaultString(&sel.ComposeEntry, defaultComposeEntrySelector)
	setDefaultString(&sel.ComposeSurface, defaultComposeSurfaceSelector)
	setDefaultString(&sel.AttachmentInput, defaultAttachmentInputSelector)
	setDefaultString(&sel.SubmitControl, defaultSubmitControlSelector)
	sel.UploadPreview = strings.TrimSpace(sel.UploadPreview)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("AUTOPOST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func setDefaultInt(target *int, fallback int) {
	if *target <= 0 {
		*target = fallback
	}
}

func setDefaultString(target *string, fallback string) {
	*target = strings.TrimSpace(*target)
	if *target == "" {
		*target = fallback
	}
}
