package config

const (
	defaultDataDir                  = "~/.local/share/autopost"
	defaultLogDir                   = "~/.local/share/autopost/logs"
	defaultInboxDir                 = "~/.local/share/autopost/inbox"
	defaultInboxProcessedName       = "processed"
	defaultInboxSettleMillis        = 500
	defaultInboxCaptionSuffix       = ".txt"
	defaultAPIBind                  = "127.0.0.1:7520"
	defaultPostingMode              = ModeTrigger
	defaultPostingStore             = StoreSQLite
	defaultTriggerIntervalMinutes   = 15
	defaultDelaySeconds             = 5
	defaultFailureRetention         = RetentionRetain
	defaultTargetURL                = "https://x.com/compose/post"
	defaultInsertMode               = InsertAtomic
	defaultPollIntervalMS           = 250
	defaultLoadTimeoutSeconds       = 30
	defaultEntryTimeoutSeconds      = 5
	defaultSurfaceTimeoutSeconds    = 10
	defaultAttachmentTimeoutSeconds = 10
	defaultUploadTimeoutSeconds     = 10
	defaultUploadFallbackSeconds    = 3
	defaultSubmitTimeoutSeconds     = 10
	defaultSettleSeconds            = 3
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30

	defaultComposeEntrySelector    = `a[href="/compose/post"]`
	defaultComposeSurfaceSelector  = `div[data-testid="tweetTextarea_0"]`
	defaultAttachmentInputSelector = `input[data-testid="fileInput"]`
	defaultUploadPreviewSelector   = `div[data-testid="attachments"]`
	defaultSubmitControlSelector   = `button[data-testid="tweetButton"]`
)

// Posting modes.
const (
	ModeTrigger = "trigger"
	ModeBatch   = "batch"
)

// Queue backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Failure retention policies.
const (
	RetentionRetain = "retain"
	RetentionDrop   = "drop"
)

// Caption insertion modes.
const (
	InsertAtomic = "atomic"
	InsertTyped  = "typed"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			InboxDir: defaultInboxDir,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Posting: Posting{
			Mode:                   defaultPostingMode,
			Store:                  defaultPostingStore,
			TriggerIntervalMinutes: defaultTriggerIntervalMinutes,
			DefaultDelaySeconds:    defaultDelaySeconds,
			FailureRetention:       defaultFailureRetention,
		},
		Browser: Browser{
			Headless:                 false,
			TargetURL:                defaultTargetURL,
			InsertMode:               defaultInsertMode,
			PollIntervalMS:           defaultPollIntervalMS,
			LoadTimeoutSeconds:       defaultLoadTimeoutSeconds,
			EntryTimeoutSeconds:      defaultEntryTimeoutSeconds,
			SurfaceTimeoutSeconds:    defaultSurfaceTimeoutSeconds,
			AttachmentTimeoutSeconds: defaultAttachmentTimeoutSeconds,
			UploadTimeoutSeconds:     defaultUploadTimeoutSeconds,
			UploadFallbackSeconds:    defaultUploadFallbackSeconds,
			SubmitTimeoutSeconds:     defaultSubmitTimeoutSeconds,
			SettleSeconds:            defaultSettleSeconds,
			Selectors: Selectors{
				ComposeEntry:    defaultComposeEntrySelector,
				ComposeSurface:  defaultComposeSurfaceSelector,
				AttachmentInput: defaultAttachmentInputSelector,
				UploadPreview:   defaultUploadPreviewSelector,
				SubmitControl:   defaultSubmitControlSelector,
			},
		},
		Inbox: Inbox{
			SettleMillis:  defaultInboxSettleMillis,
			CaptionSuffix: defaultInboxCaptionSuffix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Runs:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
