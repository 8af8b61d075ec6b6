package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/daemon"
	"autopost/internal/ipc"
	"autopost/internal/logging"
	"autopost/internal/notifications"
	"autopost/internal/queue"
	"autopost/internal/workflow"
)

const (
	logPrefix         = "autopost-"
	logPointerName    = "autopost.log"
	retentionInterval = 24 * time.Hour
	keepRunLogs       = 3
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Foreground also writes logs to stdout.
	Foreground bool
}

// Run starts the autopost daemon and blocks until a signal arrives or a
// client asks it to stop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		_ = client.Close()
		return errors.New("another autopost daemon is already running")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, logPrefix+runID+".log")
	logger, err := newLogger(cfg, opts, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String(logging.FieldRunID, runID))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logPointerName, err)
	}
	pruneLogs(logger, cfg, logPath)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := openStore(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store failed", "queue_open_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check data_dir permissions or remove a corrupt queue.db"))
		return err
	}

	browser := automation.NewRodBrowser(automation.RodOptionsFromConfig(cfg), logger)
	defer browser.Close()
	driver := automation.NewDriver(browser, automation.OptionsFromConfig(cfg), logger)
	notifier := notifications.NewService(cfg)

	mgr := workflow.NewManager(cfg, store, driver, logger, workflow.WithNotifier(notifier))
	d, err := daemon.New(cfg, store, mgr, logger,
		daemon.WithProber(driver),
		daemon.WithLogPath(logPath),
		daemon.WithNotifier(notifier),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(runCtx, cfg.SocketPath(), d, logger, ipc.WithShutdown(shutdown))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("autopost daemon ready",
		zap.String(logging.FieldEventType, "daemon_ready"),
		zap.String("socket", cfg.SocketPath()),
		zap.String("mode", cfg.Posting.Mode),
		zap.String("store", cfg.Posting.Store),
		zap.String("log_path", logPath),
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := d.Start(gctx); err != nil {
			logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
				zap.Error(err),
				zap.String(logging.FieldErrorHint, "check configuration and queue database access"),
				zap.String(logging.FieldImpact, "queued posts will not be published until autopost start succeeds"),
			)
		}
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				pruneLogs(logger, cfg, logPath)
			}
		}
	})
	err = g.Wait()
	logger.Info("autopost daemon shutting down", zap.String(logging.FieldEventType, "daemon_shutdown"))
	return err
}

func newLogger(cfg *config.Config, opts Options, logPath string) (*zap.Logger, error) {
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{logPath}
	errOutputs := []string{logPath}
	if opts.Foreground {
		outputs = append([]string{"stdout"}, outputs...)
		errOutputs = append([]string{"stderr"}, errOutputs...)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func openStore(cfg *config.Config) (queue.Queue, error) {
	if cfg.Posting.Store == config.StoreMemory {
		return queue.NewMemoryQueue(), nil
	}
	return queue.Open(cfg)
}

func pruneLogs(logger *zap.Logger, cfg *config.Config, current string) {
	removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:        cfg.Paths.LogDir,
		Pattern:    logPrefix + "*.log",
		Exclude:    []string{current},
		KeepNewest: keepRunLogs,
	})
	if removed > 0 {
		logger.Info("old run logs pruned", zap.Int("removed", removed), zap.String(logging.FieldEventType, "logs_pruned"))
	}
}

// ensureCurrentLogPointer points autopost.log at the active run's log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
