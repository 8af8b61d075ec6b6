package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"autopost/internal/notifications"
	"autopost/internal/queue"
)

func (m *Manager) notifyRunStarted(ctx context.Context, count int) {
	m.sendNotification(ctx, notifications.EventRunStarted, notifications.Payload{
		"count": count,
		"mode":  string(m.mode),
	})
}

func (m *Manager) notifyRunCompleted(ctx context.Context, posted int, duration time.Duration) {
	m.sendNotification(ctx, notifications.EventRunCompleted, notifications.Payload{
		"posted":   posted,
		"duration": duration,
	})
}

func (m *Manager) notifyPostFailed(ctx context.Context, job *queue.Job, summary string, remaining int) {
	payload := notifications.Payload{
		"error":     summary,
		"remaining": remaining,
	}
	if job != nil {
		payload["file"] = job.FileName
	}
	m.sendNotification(ctx, notifications.EventPostFailed, payload)
}

func (m *Manager) sendNotification(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", zap.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", zap.String("event", string(event)), zap.Error(err))
	}
}
