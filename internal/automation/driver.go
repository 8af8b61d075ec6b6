package automation

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autopost/internal/config"
	"autopost/internal/logging"
)

const defaultPollInterval = 250 * time.Millisecond

// Selectors names the page elements used by each step.
type Selectors struct {
	ComposeEntry    string
	ComposeSurface  string
	AttachmentInput string
	UploadPreview   string
	SubmitControl   string
}

// Options configures step timeouts and page selectors.
type Options struct {
	TargetURL         string
	Selectors         Selectors
	TypedInsert       bool
	PollInterval      time.Duration
	LoadTimeout       time.Duration
	EntryTimeout      time.Duration
	SurfaceTimeout    time.Duration
	AttachmentTimeout time.Duration
	UploadTimeout     time.Duration
	UploadFallback    time.Duration
	SubmitTimeout     time.Duration
	Settle            time.Duration
}

// OptionsFromConfig maps the [browser] config section onto driver options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	b := cfg.Browser
	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return Options{
		TargetURL: b.TargetURL,
		Selectors: Selectors{
			ComposeEntry:    b.Selectors.ComposeEntry,
			ComposeSurface:  b.Selectors.ComposeSurface,
			AttachmentInput: b.Selectors.AttachmentInput,
			UploadPreview:   b.Selectors.UploadPreview,
			SubmitControl:   b.Selectors.SubmitControl,
		},
		TypedInsert:       b.InsertMode == config.InsertTyped,
		PollInterval:      cfg.PollInterval(),
		LoadTimeout:       seconds(b.LoadTimeoutSeconds),
		EntryTimeout:      seconds(b.EntryTimeoutSeconds),
		SurfaceTimeout:    seconds(b.SurfaceTimeoutSeconds),
		AttachmentTimeout: seconds(b.AttachmentTimeoutSeconds),
		UploadTimeout:     seconds(b.UploadTimeoutSeconds),
		UploadFallback:    seconds(b.UploadFallbackSeconds),
		SubmitTimeout:     seconds(b.SubmitTimeoutSeconds),
		Settle:            seconds(b.SettleSeconds),
	}
}

// Post is a single image and caption to publish.
type Post struct {
	Data     []byte
	MimeType string
	Caption  string
}

// Outcome is the result shape returned by Invoke.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ProbeResult reports whether the compose page is reachable.
type ProbeResult struct {
	Reachable bool   `json:"reachable"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Driver performs the compose-and-submit steps on a Browser page.
type Driver struct {
	browser Browser
	opts    Options
	logger  *zap.Logger
}

// NewDriver constructs a driver bound to browser.
func NewDriver(browser Browser, opts Options, logger *zap.Logger) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Driver{
		browser: browser,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "driver"),
	}
}

// Invoke posts data with caption and reports the result without returning an error.
func (d *Driver) Invoke(ctx context.Context, data []byte, mimeType, caption string) Outcome {
	if err := d.Post(ctx, Post{Data: data, MimeType: mimeType, Caption: caption}); err != nil {
		return Outcome{Success: false, Error: Summarize(err)}
	}
	return Outcome{Success: true}
}

// Post publishes one image and caption. Failures are returned as *DriverError.
func (d *Driver) Post(ctx context.Context, post Post) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	step := StepAcquireTarget
	defer func() {
		if r := recover(); r != nil {
			err = &DriverError{Kind: KindPageFault, Step: step, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	logger := logging.WithContext(ctx, d.logger)
	sel := d.opts.Selectors

	if d.browser == nil {
		return &DriverError{Kind: KindTargetUnavailable, Step: step, Err: errors.New("no browser configured")}
	}
	page, acquireErr := d.acquire(ctx)
	if acquireErr != nil {
		return &DriverError{Kind: KindTargetUnavailable, Step: step, Err: acquireErr}
	}

	// The composer may already be open, so a missing or covered entry control
	// is not fatal.
	step = StepComposeEntry
	if sel.ComposeEntry != "" {
		if d.await(ctx, page.Exists, sel.ComposeEntry, d.opts.EntryTimeout) == nil {
			clickErr := d.act(ctx, d.opts.EntryTimeout, func(ctx context.Context) error {
				return page.Click(ctx, sel.ComposeEntry)
			})
			if clickErr != nil {
				logger.Debug("compose entry click failed", zap.Error(clickErr))
			}
		} else {
			logger.Debug("compose entry not found; assuming composer is open")
		}
	}

	step = StepComposeSurface
	if waitErr := d.await(ctx, page.Exists, sel.ComposeSurface, d.opts.SurfaceTimeout); waitErr != nil {
		return &DriverError{Kind: KindComposeSurfaceNotFound, Step: step, Err: waitErr}
	}

	step = StepInsertCaption
	if post.Caption != "" {
		insert := page.InsertText
		if d.opts.TypedInsert {
			insert = page.TypeText
		}
		insertErr := d.act(ctx, d.opts.SurfaceTimeout, func(ctx context.Context) error {
			if err := insert(ctx, sel.ComposeSurface, post.Caption); err != nil {
				return err
			}
			return page.NotifyChange(ctx, sel.ComposeSurface)
		})
		if insertErr != nil {
			return stepError(KindComposeSurfaceNotFound, step, insertErr)
		}
	}

	step = StepAttachmentInput
	if waitErr := d.await(ctx, page.Exists, sel.AttachmentInput, d.opts.AttachmentTimeout); waitErr != nil {
		return &DriverError{Kind: KindAttachmentInputNotFound, Step: step, Err: waitErr}
	}

	step = StepAttachImage
	attachment := Attachment{
		Name:     generatedName(post.MimeType),
		MimeType: post.MimeType,
		Data:     post.Data,
	}
	attachErr := d.act(ctx, d.opts.AttachmentTimeout, func(ctx context.Context) error {
		if err := page.AttachFile(ctx, sel.AttachmentInput, attachment); err != nil {
			return err
		}
		return page.NotifyChange(ctx, sel.AttachmentInput)
	})
	if attachErr != nil {
		return stepError(KindAttachmentInputNotFound, step, attachErr)
	}

	step = StepAwaitUpload
	if waitErr := d.awaitUpload(ctx, page); waitErr != nil {
		return &DriverError{Kind: KindPageFault, Step: step, Err: waitErr}
	}

	step = StepSubmitControl
	enabled := func(ctx context.Context, selector string) (bool, error) {
		if ok, existsErr := page.Exists(ctx, selector); !ok || existsErr != nil {
			return false, existsErr
		}
		return page.Enabled(ctx, selector)
	}
	if waitErr := d.await(ctx, enabled, sel.SubmitControl, d.opts.SubmitTimeout); waitErr != nil {
		return &DriverError{Kind: KindSubmitControlNotFound, Step: step, Err: waitErr}
	}

	step = StepSubmit
	clickErr := d.act(ctx, d.opts.SubmitTimeout, func(ctx context.Context) error {
		return page.Click(ctx, sel.SubmitControl)
	})
	if clickErr != nil {
		return stepError(KindSubmitControlNotFound, step, clickErr)
	}
	if sleepErr := sleepContext(ctx, d.opts.Settle); sleepErr != nil {
		return &DriverError{Kind: KindPageFault, Step: step, Err: sleepErr}
	}
	logger.Debug("post submitted", zap.Int("image_bytes", len(post.Data)))
	return nil
}

// Probe checks that the compose page can be opened.
func (d *Driver) Probe(ctx context.Context) ProbeResult {
	if d.browser == nil {
		return ProbeResult{Error: "no browser configured"}
	}
	page, err := d.acquire(ctx)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	var location string
	err = d.act(ctx, d.opts.LoadTimeout, func(ctx context.Context) error {
		var locErr error
		location, locErr = page.Location(ctx)
		return locErr
	})
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	return ProbeResult{Reachable: sameHost(location, d.opts.TargetURL), URL: location}
}

func (d *Driver) await(ctx context.Context, check func(context.Context, string) (bool, error), selector string, timeout time.Duration) error {
	if strings.TrimSpace(selector) == "" {
		return errors.New("selector not configured")
	}
	var lastErr error
	err := AwaitCondition(ctx, func(ctx context.Context) bool {
		var ok bool
		checkErr := d.act(ctx, timeout, func(ctx context.Context) error {
			var err error
			ok, err = check(ctx, selector)
			return err
		})
		if checkErr != nil {
			lastErr = checkErr
			return false
		}
		return ok
	}, d.opts.PollInterval, timeout)
	if errors.Is(err, ErrConditionTimeout) && lastErr != nil {
		return fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return err
}

func (d *Driver) acquire(ctx context.Context) (Page, error) {
	var page Page
	err := d.act(ctx, d.opts.LoadTimeout, func(ctx context.Context) error {
		var err error
		page, err = d.browser.Acquire(ctx, d.opts.TargetURL)
		return err
	})
	return page, err
}

// act runs one page action under its own deadline. Page implementations
// must stop when the context they are given ends.
func (d *Driver) act(ctx context.Context, timeout time.Duration, action func(context.Context) error) error {
	if timeout <= 0 {
		return action(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := action(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrActionTimeout, timeout, err)
	}
	return err
}

// stepError reports a step that ran out of time as timeoutKind and any other
// failure as a page fault.
func stepError(timeoutKind Kind, step string, err error) *DriverError {
	kind := KindPageFault
	if errors.Is(err, ErrActionTimeout) {
		kind = timeoutKind
	}
	return &DriverError{Kind: kind, Step: step, Err: err}
}

func (d *Driver) awaitUpload(ctx context.Context, page Page) error {
	if preview := d.opts.Selectors.UploadPreview; preview != "" {
		err := d.await(ctx, page.Exists, preview, d.opts.UploadTimeout)
		if err == nil || !errors.Is(err, ErrConditionTimeout) {
			return err
		}
		logging.WarnWithContext(d.logger, "upload preview not seen; waiting fixed settle period", "upload_preview_missing",
			zap.String(logging.FieldErrorHint, "check browser.selectors.upload_preview"),
			zap.String(logging.FieldImpact, "post proceeds after a fixed wait"),
		)
	}
	// No observable upload signal: a fixed wait is the only option left.
	return sleepContext(ctx, d.opts.UploadFallback)
}

var preferredExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func generatedName(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	ext, ok := preferredExtensions[mimeType]
	if !ok {
		ext = ".png"
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return uuid.NewString() + ext
}

func sameHost(location, target string) bool {
	loc, err := url.Parse(location)
	if err != nil {
		return false
	}
	want, err := url.Parse(target)
	if err != nil {
		return false
	}
	return loc.Host != "" && strings.EqualFold(loc.Host, want.Host)
}
