package workflow

import (
	"context"

	"go.uber.org/zap"

	"autopost/internal/queue"
)

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		Mode:       m.mode,
		Retention:  m.retention,
		Armed:      m.armed,
		NextFiring: m.nextFiring,
		LastPosted: m.lastPosted,
		PendingRun: len(m.runs),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.inFlight != nil {
		job := *m.inFlight
		job.ImageData = nil
		summary.InFlight = &job
	}
	m.mu.RUnlock()

	stats, err := m.queue.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", zap.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setInFlight(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.inFlight = &copy
	} else {
		m.inFlight = nil
	}
	m.mu.Unlock()
}
