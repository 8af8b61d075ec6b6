package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"autopost/internal/api"
	"autopost/internal/config"
	"autopost/internal/events"
	"autopost/internal/logging"
	"autopost/internal/manifest"
	"autopost/internal/queue"
	"autopost/internal/services"
	"autopost/internal/workflow"
)

const (
	maxSubmitBytes    = 256 << 20
	multipartMemory   = 32 << 20
	defaultEventLimit = 200
	maxEventWait      = 25 * time.Second
)

type apiServer struct {
	bind   string
	logger *zap.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *zap.Logger) *apiServer {
	srv := &apiServer{
		bind:   cfg.API.Bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token, cfg.API.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      maxEventWait + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Use(requestContext)

		r.Get("/status", s.handleStatus)
		r.Post("/posts", s.handleSubmit)

		r.Get("/jobs", s.handleJobs)
		r.Delete("/jobs", s.handleClear)
		r.Post("/jobs/retry", s.handleRetry)
		r.Get("/jobs/{id}", s.handleJob)
		r.Delete("/jobs/{id}", s.handleCancel)
		r.Put("/jobs/{id}/caption", s.handleCaption)
		r.Put("/batches/{id}/template", s.handleTemplate)
		r.Post("/resume", s.handleResume)

		r.Get("/events", s.handleEvents)

		r.Get("/settings", s.handleSettings)
		r.Put("/settings", s.handleUpdateSettings)
	})
	return r
}

// requestContext copies the chi request id into the service context so log
// lines carry it.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				zap.Error(err),
				zap.String(logging.FieldErrorHint, "check api.bind and restart the daemon"))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", zap.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	probe := parseBool(r.URL.Query().Get("probe"))
	s.writeJSON(w, http.StatusOK, StatusPayload(s.daemon.Status(r.Context(), probe)))
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "submit", "expected multipart form with image files", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	sub, err := submissionFromForm(r.MultipartForm)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ack, err := s.daemon.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, ack)
}

// submissionFromForm reads "image" file parts in order. Optional "caption"
// and "delay" values pair with images by position; "template" applies to
// the whole batch.
func submissionFromForm(form *multipart.Form) (workflow.Submission, error) {
	files := form.File["image"]
	if len(files) == 0 {
		return workflow.Submission{}, services.Wrap(services.ErrValidation, "api", "submit", "no image parts supplied", nil)
	}
	captions := form.Value["caption"]
	delays := form.Value["delay"]

	sub := workflow.Submission{Items: make([]workflow.SubmitItem, 0, len(files))}
	if templates := form.Value["template"]; len(templates) > 0 {
		sub.Template = templates[0]
	}
	for i, header := range files {
		data, err := readPart(header)
		if err != nil {
			return workflow.Submission{}, services.Wrap(services.ErrValidation, "api", "submit", header.Filename, err)
		}
		item := workflow.SubmitItem{
			Data:     data,
			MimeType: header.Header.Get("Content-Type"),
			FileName: header.Filename,
		}
		if i < len(captions) {
			item.Caption = captions[i]
		}
		if i < len(delays) && strings.TrimSpace(delays[i]) != "" {
			seconds, err := strconv.Atoi(strings.TrimSpace(delays[i]))
			if err != nil {
				return workflow.Submission{}, services.Wrap(services.ErrValidation, "api", "submit",
					fmt.Sprintf("delay for %s must be whole seconds", header.Filename), err)
			}
			item.DelaySeconds = &seconds
		}
		sub.Items = append(sub.Items, item)
	}
	return sub, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > manifest.MaxImageBytes {
		return nil, fmt.Errorf("%d bytes exceeds the %d byte limit", header.Size, manifest.MaxImageBytes)
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, manifest.MaxImageBytes))
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "list jobs", fmt.Sprintf("unknown status %q", value), nil))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.ListJobs(r.Context(), statuses)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.daemon.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.CancelJob(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type captionRequest struct {
	Caption string `json:"caption"`
}

func (s *apiServer) handleCaption(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	var req captionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.UpdateCaption(r.Context(), id, req.Caption); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type templateRequest struct {
	Template string `json:"template"`
}

func (s *apiServer) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.daemon.UpdateBatchTemplate(r.Context(), chi.URLParam(r, "id"), req.Template)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: updated})
}

type retryRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	updated, err := s.daemon.RetryFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: updated})
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	pending, err := s.daemon.Resume(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: int64(pending)})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	var (
		removed int64
		err     error
	)
	if parseBool(r.URL.Query().Get("failed")) {
		removed, err = s.daemon.ClearFailed(r.Context())
	} else {
		removed, err = s.daemon.ClearQueue(r.Context())
	}
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrUnavailable, "api", "clear", "queue update failed", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: removed})
}

type eventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	wait := parseBool(query.Get("wait"))

	ctx := r.Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxEventWait)
		defer cancel()
	}
	evts, next, err := s.daemon.Events(ctx, since, limit, wait)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, err)
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	s.writeJSON(w, http.StatusOK, eventsResponse{Events: evts, Next: next})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.daemon.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !s.decode(w, r, &req) {
		return
	}
	for key, value := range req {
		if err := s.daemon.SetSetting(r.Context(), key, value); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.handleSettings(w, r)
}

func (s *apiServer) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "job", "invalid job id", nil))
		return 0, false
	}
	return id, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	kind := services.Kind(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed", zap.Error(err), zap.String("kind", kind))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func statusForKind(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "unavailable":
		return http.StatusServiceUnavailable
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}
