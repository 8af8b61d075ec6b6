package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"autopost/internal/api"
	"autopost/internal/daemon"
	"autopost/internal/logging"
	"autopost/internal/logs"
	"autopost/internal/queue"
	"autopost/internal/services"
)

const (
	serviceName  = "Autopost"
	maxEventWait = 25 * time.Second
	maxLogWait   = 10 * time.Second
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *zap.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// ServerOption customizes a Server.
type ServerOption func(*service)

// WithShutdown registers a function the Stop call invokes after replying so
// the hosting process can exit.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) {
		s.shutdown = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *zap.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", zap.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					zap.Error(err),
					zap.String(logging.FieldImpact, "IPC clients may fail to connect"),
					zap.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server, drops open connections, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			zap.String("socket", s.path),
			zap.Error(err),
			zap.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			zap.String(logging.FieldErrorHint, "remove the socket file manually or rerun autopost stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *zap.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", zap.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	if s.shutdown != nil {
		resp.Exiting = true
		// Let the reply reach the client before the listener goes away.
		time.AfterFunc(100*time.Millisecond, s.shutdown)
	}
	s.logger.Info("daemon stopped via IPC", zap.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	*resp = daemon.StatusPayload(s.daemon.Status(s.ctx, req.Probe))
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	sub := req.Submission()
	ack, err := s.daemon.Submit(s.ctx, sub)
	if err != nil {
		return err
	}
	resp.Started = ack.Started
	resp.BatchID = ack.BatchID
	resp.JobIDs = ack.JobIDs
	s.logger.Info("submission queued via IPC",
		zap.String(logging.FieldEventType, "ipc_submit"),
		zap.String(logging.FieldBatchID, ack.BatchID),
		zap.Int("job_count", len(ack.JobIDs)))
	return nil
}

func (s *service) Jobs(req JobsRequest, resp *JobsResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return services.Wrap(services.ErrValidation, "ipc", "list jobs", fmt.Sprintf("unknown status %q", value), nil)
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromJobs(jobs)
	return nil
}

func (s *service) Job(req JobRequest, resp *JobResponse) error {
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.CancelJob(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	s.logger.Info("job cancelled via IPC",
		zap.String(logging.FieldEventType, "job_cancel"),
		zap.Int64(logging.FieldJobID, req.ID))
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.logger.Info("failed jobs retried",
		zap.String(logging.FieldEventType, "queue_retry"),
		zap.Int64("updated_count", updated))
	return nil
}

func (s *service) Clear(req ClearRequest, resp *ClearResponse) error {
	var (
		removed int64
		err     error
	)
	if req.FailedOnly {
		removed, err = s.daemon.ClearFailed(s.ctx)
	} else {
		removed, err = s.daemon.ClearQueue(s.ctx)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared",
		zap.String(logging.FieldEventType, "queue_clear"),
		zap.Bool("failed_only", req.FailedOnly),
		zap.Int64("removed_count", removed))
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	pending, err := s.daemon.Resume(s.ctx)
	if err != nil {
		return err
	}
	resp.Pending = pending
	return nil
}

func (s *service) UpdateCaption(req CaptionRequest, resp *CaptionResponse) error {
	if err := s.daemon.UpdateCaption(s.ctx, req.ID, req.Caption); err != nil {
		return err
	}
	resp.Updated = true
	return nil
}

func (s *service) UpdateTemplate(req TemplateRequest, resp *TemplateResponse) error {
	updated, err := s.daemon.UpdateBatchTemplate(s.ctx, req.BatchID, req.Template)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxEventWait {
		wait = maxEventWait
	}
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	evts, next, err := s.daemon.Events(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Events = evts
	resp.Next = next
	return nil
}

func (s *service) Settings(_ SettingsRequest, resp *SettingsResponse) error {
	settings, err := s.daemon.Settings(s.ctx)
	if err != nil {
		return err
	}
	resp.Settings = settings
	return nil
}

func (s *service) SetSetting(req SetSettingRequest, resp *SetSettingResponse) error {
	if err := s.daemon.SetSetting(s.ctx, req.Key, req.Value); err != nil {
		return err
	}
	resp.Stored = true
	s.logger.Info("setting updated via IPC",
		zap.String(logging.FieldEventType, "setting_update"),
		zap.String("key", req.Key))
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	if wait > maxLogWait {
		wait = maxLogWait
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset:   req.Offset,
		Limit:    req.Limit,
		Follow:   req.Follow,
		Wait:     wait,
		Contains: req.Contains,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TotalJobs = health.TotalJobs
	resp.Error = health.Error
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}
