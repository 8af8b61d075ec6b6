package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"autopost/internal/config"
	"autopost/internal/fileutil"
	"autopost/internal/logging"
	"autopost/internal/manifest"
	"autopost/internal/services"
	"autopost/internal/workflow"
)

type submitter interface {
	Submit(ctx context.Context, sub workflow.Submission) (workflow.Ack, error)
}

// inboxWatcher queues images dropped into the inbox directory. A file is
// picked up once it has stopped changing for the settle period, then moved
// to the processed directory together with its caption sidecar.
type inboxWatcher struct {
	dir          string
	processedDir string
	suffix       string
	settle       time.Duration
	submit       submitter
	logger       *zap.Logger
	watcher      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func newInboxWatcher(cfg *config.Config, s submitter, logger *zap.Logger) (*inboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &inboxWatcher{
		dir:          cfg.Paths.InboxDir,
		processedDir: cfg.Inbox.ProcessedDir,
		suffix:       cfg.Inbox.CaptionSuffix,
		settle:       time.Duration(cfg.Inbox.SettleMillis) * time.Millisecond,
		submit:       s,
		logger:       logging.NewComponentLogger(logger, "inbox"),
		watcher:      watcher,
		pending:      make(map[string]time.Time),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

func (w *inboxWatcher) start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		_ = w.watcher.Close()
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		_ = w.watcher.Close()
		return err
	}
	w.scanExisting()
	go w.run(ctx)
	w.logger.Info("inbox watcher started",
		zap.String("dir", w.dir),
		zap.String("processed_dir", w.processedDir),
	)
	return nil
}

func (w *inboxWatcher) stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close inbox watcher", zap.Error(err))
	}
}

// scanExisting queues images that were dropped while the daemon was down.
func (w *inboxWatcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to scan inbox", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.touch(filepath.Join(w.dir, entry.Name()))
	}
}

func (w *inboxWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	interval := w.settle / 2
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				zap.Error(err),
				zap.String(logging.FieldImpact, "some dropped images may not be queued until restart"),
			)
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *inboxWatcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.touch(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()
	}
}

// touch (re)starts the settle timer for an image path.
func (w *inboxWatcher) touch(path string) {
	if filepath.Dir(path) != filepath.Clean(w.dir) || !manifest.IsImagePath(path) {
		return
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now().Add(w.settle)
	w.mu.Unlock()
}

func (w *inboxWatcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, deadline := range w.pending {
		if now.Before(deadline) {
			continue
		}
		delete(w.pending, path)
		ready = append(ready, path)
	}
	sort.Strings(ready)
	return ready
}

func (w *inboxWatcher) processSettled(ctx context.Context) {
	for _, path := range w.settled(time.Now()) {
		if err := w.ingest(ctx, path); err != nil {
			logging.WarnWithContext(w.logger, "inbox file not queued", "inbox_ingest_failed",
				zap.String("path", path),
				zap.String("kind", services.Kind(err)),
				zap.Error(err),
				zap.String(logging.FieldImpact, "file stays in the inbox"),
				zap.String(logging.FieldErrorHint, "replace the file with a valid image to retry"),
			)
		}
	}
}

func (w *inboxWatcher) ingest(ctx context.Context, path string) error {
	img, err := manifest.LoadImage(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "inbox", "load", filepath.Base(path), err)
	}
	caption, sidecar, err := manifest.ReadSidecar(path, w.suffix)
	if err != nil {
		return services.Wrap(services.ErrValidation, "inbox", "caption", filepath.Base(path), err)
	}

	ack, err := w.submit.Submit(ctx, workflow.Submission{
		Items: []workflow.SubmitItem{img.Item(caption, nil)},
	})
	if err != nil {
		return err
	}

	logger := logging.WithContext(services.WithBatchID(ctx, ack.BatchID), w.logger)
	dst, err := fileutil.MoveFile(path, w.processedDir)
	if err != nil {
		logging.WarnWithContext(logger, "failed to move queued inbox file", "inbox_move_failed",
			zap.String("path", path),
			zap.Error(err),
			zap.String(logging.FieldImpact, "the file may be queued again after a restart"),
		)
	}
	if sidecar != "" {
		if _, err := fileutil.MoveFile(sidecar, w.processedDir); err != nil {
			logger.Warn("failed to move caption sidecar", zap.String("path", sidecar), zap.Error(err))
		}
	}
	logger.Info("inbox image queued",
		zap.String("file", img.FileName),
		zap.Int64s("job_ids", ack.JobIDs),
		zap.Bool("caption", caption != ""),
		zap.String("processed", dst),
		zap.String(logging.FieldEventType, "inbox_queued"),
	)
	return nil
}
