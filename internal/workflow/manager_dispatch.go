package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autopost/internal/automation"
	"autopost/internal/caption"
	"autopost/internal/events"
	"autopost/internal/logging"
	"autopost/internal/queue"
	"autopost/internal/services"
)

// fire handles one trigger firing. It reports false when the queue had
// nothing pending, which disarms the trigger.
func (m *Manager) fire(ctx context.Context) bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)

	job, err := m.queue.Next(ctx)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to fetch next job", "queue_fetch_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check queue database access"),
		)
		// Keep the trigger armed; the next firing retries.
		return true
	}
	if job == nil {
		m.publish(events.Event{
			Message:  "Queue empty; posting paused until new images arrive",
			Severity: events.SeverityInfo,
			Complete: true,
			RunID:    runID,
		})
		return false
	}

	if err := m.dispatch(ctx, job); err != nil {
		if ctx.Err() != nil {
			return true
		}
		m.failRun(ctx, job, nil, err, runID)
		return true
	}
	m.publish(events.Event{
		Message:  fmt.Sprintf("Posted %s", describeJob(job)),
		Severity: events.SeveritySuccess,
		JobID:    job.ID,
		BatchID:  job.BatchID,
		RunID:    runID,
	})
	return true
}

// RunBatch posts the jobs with ids in order, waiting each job's delay before
// starting the next. A failure aborts the rest of the run and is handled
// according to the retention policy. Jobs removed or no longer pending when
// their turn comes are skipped.
func (m *Manager) RunBatch(ctx context.Context, ids []int64) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)
	start := m.clock.Now()

	logger.Info("batch run started", zap.Int("jobs", len(ids)), zap.String(logging.FieldEventType, "run_started"))
	m.notifyRunStarted(ctx, len(ids))

	posted := 0
	for i, id := range ids {
		job, err := m.queue.Get(ctx, id)
		if err != nil {
			m.setLastError(err)
			m.failRun(ctx, &queue.Job{ID: id}, ids[i+1:], err, runID)
			return err
		}
		if job == nil || job.Status != queue.StatusPending {
			m.publish(events.Event{
				Message:  fmt.Sprintf("Skipped job %d (%d/%d): no longer queued", id, i+1, len(ids)),
				Severity: events.SeverityInfo,
				JobID:    id,
				RunID:    runID,
			})
			continue
		}

		if err := m.dispatch(ctx, job); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.failRun(ctx, job, ids[i+1:], err, runID)
			return err
		}
		posted++
		m.publish(events.Event{
			Message:  fmt.Sprintf("Posted %s (%d/%d)", describeJob(job), i+1, len(ids)),
			Severity: events.SeveritySuccess,
			JobID:    job.ID,
			BatchID:  job.BatchID,
			RunID:    runID,
		})

		if i == len(ids)-1 {
			break
		}
		if delay := job.Delay(); delay > 0 {
			logger.Debug("waiting before next post", zap.Duration("delay", delay))
			if err := m.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	duration := m.clock.Now().Sub(start)
	m.publish(events.Event{
		Message:  fmt.Sprintf("Batch complete: %d posted", posted),
		Severity: events.SeveritySuccess,
		Complete: true,
		RunID:    runID,
	})
	logger.Info("batch run completed",
		zap.Int("posted", posted),
		zap.Duration("duration", duration),
		zap.String(logging.FieldEventType, "run_completed"),
	)
	m.notifyRunCompleted(ctx, posted, duration)
	return nil
}

// dispatch posts a single job and records the outcome in the queue. On
// failure the job is left in flight for failRun to settle.
func (m *Manager) dispatch(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithBatchID(ctx, job.BatchID)
	logger := logging.WithContext(ctx, m.logger)

	if err := m.queue.MarkInFlight(ctx, job.ID); err != nil {
		return err
	}
	job.Status = queue.StatusInFlight
	m.setInFlight(job)
	defer m.setInFlight(nil)

	text, report := caption.ExpandWithReport(job.FileName, job.BatchTemplate)
	if report.CompileErr != nil {
		logger.Debug("caption directive did not compile; using skeleton as is", zap.Error(report.CompileErr))
	}
	text = caption.Combine(text, job.CaptionOverride)

	logger.Info("posting job",
		zap.String("file", job.AttachmentName()),
		zap.Int("image_bytes", len(job.ImageData)),
		zap.Int("caption_chars", len([]rune(text))),
	)
	err := m.poster.Post(ctx, automation.Post{
		Data:     job.ImageData,
		MimeType: job.MimeType,
		Caption:  text,
	})
	if err != nil {
		return err
	}

	// Posted is recorded before removal so a crash in between never
	// re-posts the job.
	if markErr := m.queue.MarkPosted(ctx, job.ID); markErr != nil {
		logging.WarnWithContext(logger, "failed to record posted job", "queue_mark_posted_failed",
			zap.Error(markErr),
			zap.String(logging.FieldImpact, "job may be posted again after restart"),
		)
	}
	if removeErr := m.queue.Remove(ctx, job.ID); removeErr != nil {
		logging.WarnWithContext(logger, "failed to remove posted job", "queue_remove_failed",
			zap.Error(removeErr),
			zap.String(logging.FieldImpact, "posted job is purged on next start"),
		)
	}
	m.mu.Lock()
	m.lastPosted = m.clock.Now()
	m.mu.Unlock()
	logger.Info("job posted", zap.String(logging.FieldEventType, "job_posted"))
	return nil
}

// failRun settles a failed job and the never-attempted remainder of its run,
// then emits the single error event for the run.
func (m *Manager) failRun(ctx context.Context, job *queue.Job, remainder []int64, cause error, runID string) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, m.logger)
	summary := automation.Summarize(cause)
	m.setLastError(cause)

	fields := []zap.Field{
		zap.Error(cause),
		zap.String("retention", string(m.retention)),
		zap.Int("aborted", len(remainder)),
		zap.String(logging.FieldErrorHint, "check the browser tab and configured selectors"),
	}
	var derr *automation.DriverError
	if errors.As(cause, &derr) {
		fields = append(fields, zap.String(logging.FieldStep, derr.Step), zap.String("kind", string(derr.Kind)))
	}
	logging.ErrorWithContext(logger, "post failed; run aborted", "post_failed", fields...)

	switch m.retention {
	case DropFailed:
		// A job that could not be read was never attempted; its state is unknown.
		if job.Status != "" {
			if err := m.queue.Remove(ctx, job.ID); err != nil {
				logger.Warn("failed to drop failed job", zap.Error(err))
			}
		}
		for _, id := range remainder {
			if err := m.dropIfPending(ctx, id); err != nil {
				logger.Warn("failed to drop aborted job", zap.Int64(logging.FieldJobID, id), zap.Error(err))
			}
		}
	default:
		if job.Status == queue.StatusInFlight {
			if err := m.queue.MarkFailed(ctx, job.ID, summary); err != nil {
				logger.Warn("failed to record job failure", zap.Error(err))
			}
		}
	}

	message := fmt.Sprintf("Post failed for %s: %s", describeJob(job), summary)
	if len(remainder) > 0 {
		verb := "left queued"
		if m.retention == DropFailed {
			verb = "dropped"
		}
		message = fmt.Sprintf("%s; %d remaining %s", message, len(remainder), verb)
	}
	m.publish(events.Event{
		Message:  message,
		Severity: events.SeverityError,
		Complete: true,
		JobID:    job.ID,
		BatchID:  job.BatchID,
		RunID:    runID,
	})
	m.notifyPostFailed(ctx, job, summary, len(remainder))
}

func (m *Manager) dropIfPending(ctx context.Context, id int64) error {
	job, err := m.queue.Get(ctx, id)
	if err != nil || job == nil || job.Status != queue.StatusPending {
		return err
	}
	return m.queue.Remove(ctx, id)
}

func (m *Manager) publish(evt events.Event) {
	m.hub.Publish(evt)
}

// triggerInterval reads the interval setting, falling back to config.
func (m *Manager) triggerInterval(ctx context.Context) time.Duration {
	minutes := m.cfg.Posting.TriggerIntervalMinutes
	if value, ok := m.setting(ctx, queue.SettingTriggerIntervalMinutes); ok {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 1 {
			minutes = parsed
		}
	}
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

func (m *Manager) defaultDelaySeconds(ctx context.Context) int {
	seconds := m.cfg.Posting.DefaultDelaySeconds
	if value, ok := m.setting(ctx, queue.SettingDefaultDelaySeconds); ok {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			seconds = parsed
		}
	}
	if seconds < 0 {
		seconds = 0
	}
	return seconds
}

func (m *Manager) captionTemplate(ctx context.Context) string {
	if value, ok := m.setting(ctx, queue.SettingCaptionTemplate); ok {
		return value
	}
	return m.cfg.Posting.CaptionTemplate
}

func (m *Manager) setting(ctx context.Context, key string) (string, bool) {
	value, ok, err := m.queue.Setting(ctx, key)
	if err != nil {
		m.logger.Debug("setting lookup failed; using config default", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, ok
}

func describeJob(job *queue.Job) string {
	if job == nil {
		return "job"
	}
	if job.FileName != "" {
		return fmt.Sprintf("%s (job %d)", job.FileName, job.ID)
	}
	return fmt.Sprintf("job %d", job.ID)
}
