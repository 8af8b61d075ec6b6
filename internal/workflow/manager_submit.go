package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autopost/internal/logging"
	"autopost/internal/queue"
	"autopost/internal/services"
)

const component = "workflow"

// Submit queues the submission and returns as soon as every job is stored.
// Posting happens in the background: in trigger mode the ticker is armed, in
// batch mode the jobs become one run. Non-image payloads are rejected.
func (m *Manager) Submit(ctx context.Context, sub Submission) (Ack, error) {
	if len(sub.Items) == 0 {
		return Ack{}, services.Wrap(services.ErrValidation, component, "submit", "no images supplied", nil)
	}
	template := sub.Template
	if strings.TrimSpace(template) == "" {
		template = m.captionTemplate(ctx)
	}
	defaultDelay := m.defaultDelaySeconds(ctx)
	batchID := uuid.NewString()

	jobs := make([]queue.NewJob, 0, len(sub.Items))
	for i, item := range sub.Items {
		mimeType := strings.TrimSpace(item.MimeType)
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(item.Data)
		}
		if idx := strings.Index(mimeType, ";"); idx >= 0 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		delay := defaultDelay
		if item.DelaySeconds != nil {
			delay = *item.DelaySeconds
		}
		job := queue.NewJob{
			ImageData:       item.Data,
			MimeType:        mimeType,
			FileName:        strings.TrimSpace(item.FileName),
			CaptionOverride: item.Caption,
			BatchID:         batchID,
			BatchTemplate:   template,
			DelaySeconds:    delay,
		}
		if err := job.Validate(); err != nil {
			return Ack{}, services.Wrap(services.ErrValidation, component, "submit",
				fmt.Sprintf("item %d (%s)", i+1, describeItem(item)), err)
		}
		jobs = append(jobs, job)
	}

	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		stored, err := m.queue.Put(ctx, job)
		if err != nil {
			m.rollback(ctx, ids)
			return Ack{}, services.Wrap(services.ErrUnavailable, component, "submit", "queue insert failed", err)
		}
		ids = append(ids, stored.ID)
	}

	logger := logging.WithContext(services.WithBatchID(ctx, batchID), m.logger)
	logger.Info("submission queued",
		zap.Int("jobs", len(ids)),
		zap.Bool("template", template != ""),
		zap.String(logging.FieldEventType, "submission_queued"),
	)

	if m.mode == ModeBatch {
		m.enqueueRun(ids)
	} else {
		m.Arm()
	}
	return Ack{Started: true, BatchID: batchID, JobIDs: ids}, nil
}

func (m *Manager) rollback(ctx context.Context, ids []int64) {
	for _, id := range ids {
		if err := m.queue.Remove(ctx, id); err != nil {
			m.logger.Warn("rollback of partial submission failed", zap.Int64(logging.FieldJobID, id), zap.Error(err))
		}
	}
}

// Jobs lists queued jobs in drain order, optionally filtered by status.
func (m *Manager) Jobs(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return m.queue.List(ctx, statuses...)
}

// Cancel removes a job that has not started posting.
func (m *Manager) Cancel(ctx context.Context, id int64) error {
	job, err := m.queue.Get(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, component, "cancel", "queue lookup failed", err)
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, component, "cancel", fmt.Sprintf("job %d", id), nil)
	}
	if job.Status == queue.StatusInFlight {
		return services.Wrap(services.ErrConflict, component, "cancel", fmt.Sprintf("job %d is being posted", id), nil)
	}
	// A trigger may claim the job between the lookup and the delete.
	removed, err := m.queue.RemoveIdle(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, component, "cancel", "queue remove failed", err)
	}
	if !removed {
		if current, getErr := m.queue.Get(ctx, id); getErr == nil && current == nil {
			return services.Wrap(services.ErrNotFound, component, "cancel", fmt.Sprintf("job %d", id), nil)
		}
		return services.Wrap(services.ErrConflict, component, "cancel", fmt.Sprintf("job %d is being posted", id), nil)
	}
	logging.WithContext(services.WithJobID(ctx, id), m.logger).Info("job cancelled",
		zap.String("status", string(job.Status)),
		zap.String(logging.FieldEventType, "job_cancelled"),
	)
	return nil
}

// Retry moves failed jobs back to pending and resumes draining. With no ids
// every failed job is retried.
func (m *Manager) Retry(ctx context.Context, ids ...int64) (int64, error) {
	count, err := m.queue.RequeueFailed(ctx, ids...)
	if err != nil {
		return 0, services.Wrap(services.ErrUnavailable, component, "retry", "requeue failed", err)
	}
	if count == 0 {
		return 0, nil
	}
	if _, err := m.Resume(ctx); err != nil {
		return count, services.Wrap(services.ErrUnavailable, component, "retry", "resume failed", err)
	}
	return count, nil
}

// ClearFailed removes every failed job.
func (m *Manager) ClearFailed(ctx context.Context) (int64, error) {
	return m.queue.ClearFailed(ctx)
}

// Clear removes every job that is not in flight.
func (m *Manager) Clear(ctx context.Context) (int64, error) {
	return m.queue.Clear(ctx)
}

// UpdateCaption replaces the caption override of a pending job.
func (m *Manager) UpdateCaption(ctx context.Context, id int64, text string) error {
	err := m.queue.UpdateCaption(ctx, id, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrNotPending):
		return services.Wrap(services.ErrConflict, component, "update caption", fmt.Sprintf("job %d", id), err)
	default:
		return services.Wrap(services.ErrUnavailable, component, "update caption", fmt.Sprintf("job %d", id), err)
	}
}

// UpdateBatchTemplate replaces the caption template of a batch's pending jobs.
func (m *Manager) UpdateBatchTemplate(ctx context.Context, batchID, template string) (int64, error) {
	if strings.TrimSpace(batchID) == "" {
		return 0, services.Wrap(services.ErrValidation, component, "update template", "batch id required", nil)
	}
	return m.queue.UpdateBatchTemplate(ctx, batchID, template)
}

// Settings returns every known setting, stored values taking precedence over
// config defaults.
func (m *Manager) Settings(ctx context.Context) (map[string]string, error) {
	out := map[string]string{
		queue.SettingCaptionTemplate:        m.cfg.Posting.CaptionTemplate,
		queue.SettingTriggerIntervalMinutes: strconv.Itoa(m.cfg.Posting.TriggerIntervalMinutes),
		queue.SettingDefaultDelaySeconds:    strconv.Itoa(m.cfg.Posting.DefaultDelaySeconds),
	}
	stored, err := m.queue.Settings(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, component, "settings", "read failed", err)
	}
	for key, value := range stored {
		out[key] = value
	}
	return out, nil
}

// SetSetting validates and stores a setting. A new trigger interval re-arms a
// running trigger so it takes effect immediately.
func (m *Manager) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if !queue.IsKnownSetting(key) {
		return services.Wrap(services.ErrValidation, component, "set setting",
			fmt.Sprintf("%q (known: %s)", key, strings.Join(queue.KnownSettings, ", ")), queue.ErrUnknownSetting)
	}
	switch key {
	case queue.SettingTriggerIntervalMinutes:
		minutes, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || minutes < 1 {
			return services.Wrap(services.ErrValidation, component, "set setting", "trigger interval must be a whole number of minutes, at least 1", err)
		}
		value = strconv.Itoa(minutes)
	case queue.SettingDefaultDelaySeconds:
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds < 0 {
			return services.Wrap(services.ErrValidation, component, "set setting", "default delay must be a non-negative number of seconds", err)
		}
		value = strconv.Itoa(seconds)
	}
	if err := m.queue.SetSetting(ctx, key, value); err != nil {
		return services.Wrap(services.ErrUnavailable, component, "set setting", key, err)
	}
	if key == queue.SettingTriggerIntervalMinutes {
		m.mu.RLock()
		armed := m.armed
		m.mu.RUnlock()
		if armed {
			m.signalArm(true)
		}
	}
	return nil
}

func describeItem(item SubmitItem) string {
	if name := strings.TrimSpace(item.FileName); name != "" {
		return name
	}
	return "unnamed"
}
