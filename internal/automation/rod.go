package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/textutil"
)

const (
	notifyChangeJS = `() => {
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
	enabledJS = `() => !this.disabled && this.getAttribute('aria-disabled') !== 'true'`
)

// RodOptions configures how RodBrowser reaches Chromium.
type RodOptions struct {
	// ControlURL connects to an already running browser when set.
	ControlURL string
	// Bin is the browser executable used when launching.
	Bin      string
	Headless bool
	// TempDir holds attachment files handed to the file input.
	TempDir string
}

// RodOptionsFromConfig maps the [browser] config section onto RodOptions.
func RodOptionsFromConfig(cfg *config.Config) RodOptions {
	return RodOptions{
		ControlURL: cfg.Browser.ControlURL,
		Bin:        cfg.Browser.Bin,
		Headless:   cfg.Browser.Headless,
		TempDir:    filepath.Join(cfg.Paths.DataDir, "attachments"),
	}
}

// RodBrowser is a Browser backed by go-rod. It keeps one page open and hands
// it to every Acquire call while the page is alive.
type RodBrowser struct {
	opts   RodOptions
	logger *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
	page       *rod.Page
	lastFile   string
}

// NewRodBrowser constructs an unconnected RodBrowser. The connection is made
// lazily on the first Acquire.
func NewRodBrowser(opts RodOptions, logger *zap.Logger) *RodBrowser {
	return &RodBrowser{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "browser"),
	}
}

// Acquire returns the shared compose page, opening it at targetURL if needed.
func (b *RodBrowser) Acquire(ctx context.Context, targetURL string) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(ctx); err != nil {
		return nil, err
	}
	if b.page != nil {
		if _, err := b.page.Context(ctx).Info(); err == nil {
			return &rodPage{owner: b, page: b.page}, nil
		}
		b.logger.Info("compose page gone; opening a new one")
		b.page = nil
	}

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return nil, fmt.Errorf("open compose page: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		b.logger.Debug("compose page load wait failed", zap.Error(err))
	}
	// Later actions bind their own deadlines through Page.Context.
	page = page.Context(context.WithoutCancel(ctx))
	b.page = page
	b.logger.Info("compose page opened", zap.String("url", targetURL))
	return &rodPage{owner: b, page: page}, nil
}

func (b *RodBrowser) connectLocked(ctx context.Context) error {
	if b.browser != nil {
		return nil
	}
	controlURL := strings.TrimSpace(b.opts.ControlURL)
	if controlURL == "" {
		launch := launcher.New().Headless(b.opts.Headless)
		if bin := strings.TrimSpace(b.opts.Bin); bin != "" {
			launch = launch.Bin(bin)
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = browser
	b.controlURL = controlURL
	return nil
}

// Close removes any leftover attachment and disconnects from the browser.
// A browser launched by RodBrowser is shut down; one reached through
// ControlURL is left running.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLastFileLocked()
	if b.browser == nil {
		return nil
	}
	var err error
	if strings.TrimSpace(b.opts.ControlURL) == "" {
		err = b.browser.Close()
	}
	b.browser = nil
	b.page = nil
	return err
}

func (b *RodBrowser) stageAttachment(file Attachment) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLastFileLocked()
	dir := b.opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}
	name := textutil.SanitizeFileName(file.Name)
	if name == "" {
		name = generatedName(file.MimeType)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, file.Data, 0o600); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	// The page may read the file lazily, so it is kept until the next
	// attachment replaces it.
	b.lastFile = path
	return path, nil
}

func (b *RodBrowser) removeLastFileLocked() {
	if b.lastFile == "" {
		return
	}
	if err := os.Remove(b.lastFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Debug("remove attachment failed", zap.String("path", b.lastFile), zap.Error(err))
	}
	b.lastFile = ""
}

type rodPage struct {
	owner *RodBrowser
	page  *rod.Page
}

func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("element %q not found", selector)
	}
	return el, nil
}

func (p *rodPage) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) Enabled(ctx context.Context, selector string) (bool, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return false, err
	}
	res, err := el.Eval(enabledJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) InsertText(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) TypeText(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return err
	}
	page := p.page.Context(ctx)
	for _, r := range text {
		if err := page.InsertText(string(r)); err != nil {
			return err
		}
	}
	return nil
}

func (p *rodPage) NotifyChange(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(notifyChangeJS)
	return err
}

func (p *rodPage) AttachFile(ctx context.Context, selector string, file Attachment) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	path, err := p.owner.stageAttachment(file)
	if err != nil {
		return err
	}
	return el.SetFiles([]string{path})
}

func (p *rodPage) Location(context.Context) (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}
