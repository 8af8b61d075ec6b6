package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/events"
	"autopost/internal/logging"
	"autopost/internal/notifications"
	"autopost/internal/preflight"
	"autopost/internal/queue"
	"autopost/internal/services"
	"autopost/internal/workflow"
)

const probeTimeout = 20 * time.Second

// Prober reports whether the compose page can be reached.
// automation.Driver satisfies it.
type Prober interface {
	Probe(ctx context.Context) automation.ProbeResult
}

// Daemon coordinates the background posting services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *zap.Logger
	queue    queue.Queue
	workflow *workflow.Manager
	prober   Prober
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	api   *apiServer
	inbox *inboxWatcher

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool                    `json:"running"`
	PID        int                     `json:"pid"`
	Workflow   workflow.StatusSummary  `json:"workflow"`
	QueuePath  string                  `json:"queue_path"`
	LockPath   string                  `json:"lock_path"`
	LogPath    string                  `json:"log_path,omitempty"`
	APIAddress string                  `json:"api_address,omitempty"`
	InboxDir   string                  `json:"inbox_dir,omitempty"`
	Page       *automation.ProbeResult `json:"page,omitempty"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithProber enables page probes in status requests.
func WithProber(p Prober) Option {
	return func(d *Daemon) {
		d.prober = p
	}
}

// WithLogPath records the per-run log file reported by status.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// WithNotifier replaces the notifier built from config.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, q queue.Queue, wf *workflow.Manager, logger *zap.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || q == nil || wf == nil {
		return nil, errors.New("daemon requires config, queue, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		queue:    q,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	wf.Events().AddSink(events.SinkFunc(d.logEvent))
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the HTTP
// API, and the inbox watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another autopost daemon instance is already running")
	}

	d.runPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	if d.cfg.API.Enabled {
		api := newAPIServer(d.cfg, d, d.logger)
		if err := api.start(runCtx); err != nil {
			d.abortStart(cancel)
			return err
		}
		d.api = api
	}
	if d.cfg.Inbox.Enabled {
		inbox, err := newInboxWatcher(d.cfg, d, d.logger)
		if err != nil {
			d.abortStart(cancel)
			return fmt.Errorf("start inbox watcher: %w", err)
		}
		if err := inbox.start(runCtx); err != nil {
			d.abortStart(cancel)
			return fmt.Errorf("start inbox watcher: %w", err)
		}
		d.inbox = inbox
	}

	d.ctx, d.cancel = runCtx, cancel
	d.running.Store(true)
	d.logger.Info("autopost daemon started",
		zap.String("lock", d.lockPath),
		zap.String("mode", string(d.workflow.Mode())),
		zap.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

func (d *Daemon) abortStart(cancel context.CancelFunc) {
	cancel()
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	d.workflow.Stop()
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.inbox != nil {
		d.inbox.stop()
		d.inbox = nil
	}
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", zap.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("autopost daemon stopped", zap.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.queue != nil {
		return d.queue.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the address the HTTP API listens on, or "" when disabled.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns the current daemon status. With probe set the compose page
// is opened to confirm it is reachable.
func (d *Daemon) Status(ctx context.Context, probe bool) Status {
	status := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		Workflow:   d.workflow.Status(ctx),
		QueuePath:  d.queuePath(),
		LockPath:   d.lockPath,
		LogPath:    d.logPath,
		APIAddress: d.APIAddress(),
	}
	if d.cfg.Inbox.Enabled {
		status.InboxDir = d.cfg.Paths.InboxDir
	}
	if probe {
		result := d.Probe(ctx)
		status.Page = &result
	}
	return status
}

// Probe checks that the compose page can be opened.
func (d *Daemon) Probe(ctx context.Context) automation.ProbeResult {
	if d.prober == nil {
		return automation.ProbeResult{Error: "no browser configured"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return d.prober.Probe(probeCtx)
}

func (d *Daemon) queuePath() string {
	if d.cfg.Posting.Store == config.StoreMemory {
		return "memory"
	}
	return d.cfg.QueuePath()
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			zap.String("check", result.Name),
			zap.String("detail", result.Detail),
			zap.String(logging.FieldImpact, "posting may fail until the check passes"),
			zap.String(logging.FieldErrorHint, "run autopost status for details"),
		)
	}
}

func (d *Daemon) logEvent(evt events.Event) {
	fields := []zap.Field{
		zap.Uint64("seq", evt.Sequence),
		zap.String("severity", string(evt.Severity)),
		zap.Bool("complete", evt.Complete),
		zap.String(logging.FieldEventType, "status_event"),
	}
	if evt.JobID != 0 {
		fields = append(fields, zap.Int64(logging.FieldJobID, evt.JobID))
	}
	if evt.RunID != "" {
		fields = append(fields, zap.String(logging.FieldRunID, evt.RunID))
	}
	d.logger.Debug(evt.Message, fields...)
}

// Submit queues a submission and returns its acknowledgement.
func (d *Daemon) Submit(ctx context.Context, sub workflow.Submission) (workflow.Ack, error) {
	return d.workflow.Submit(ctx, sub)
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	jobs, err := d.workflow.Jobs(ctx, statuses...)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "daemon", "list jobs", "queue read failed", err)
	}
	return jobs, nil
}

// GetJob returns a single job without its image payload.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := d.queue.Get(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "daemon", "get job", "queue read failed", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "get job", fmt.Sprintf("job %d", id), nil)
	}
	job.ImageData = nil
	return job, nil
}

// CancelJob removes a job that has not started posting.
func (d *Daemon) CancelJob(ctx context.Context, id int64) error {
	return d.workflow.Cancel(ctx, id)
}

// RetryFailed requeues failed jobs, all of them when ids is empty.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.workflow.Retry(ctx, ids...)
}

// Resume restarts draining of pending jobs.
func (d *Daemon) Resume(ctx context.Context) (int, error) {
	return d.workflow.Resume(ctx)
}

// ClearFailed removes failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.workflow.ClearFailed(ctx)
}

// ClearQueue removes every job that is not in flight.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.workflow.Clear(ctx)
}

// UpdateCaption replaces the caption of a pending job.
func (d *Daemon) UpdateCaption(ctx context.Context, id int64, text string) error {
	return d.workflow.UpdateCaption(ctx, id, text)
}

// UpdateBatchTemplate replaces the caption template of a batch.
func (d *Daemon) UpdateBatchTemplate(ctx context.Context, batchID, template string) (int64, error) {
	return d.workflow.UpdateBatchTemplate(ctx, batchID, template)
}

// Settings returns the effective posting settings.
func (d *Daemon) Settings(ctx context.Context) (map[string]string, error) {
	return d.workflow.Settings(ctx)
}

// SetSetting stores a posting setting.
func (d *Daemon) SetSetting(ctx context.Context, key, value string) error {
	return d.workflow.SetSetting(ctx, key, value)
}

// Events returns status events after since, optionally waiting for new ones.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]events.Event, uint64, error) {
	return d.workflow.Events().Fetch(ctx, since, limit, wait)
}

// DatabaseHealth reports diagnostics for the queue database. The memory store
// has no file and reports its path as "memory".
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	checker, ok := d.queue.(interface {
		CheckHealth(context.Context) (queue.DatabaseHealth, error)
	})
	if !ok {
		return queue.DatabaseHealth{DBPath: d.queuePath(), DatabaseReadable: true}, nil
	}
	return checker.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
