package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"autopost/internal/logging"
	"autopost/internal/queue"
)

// Start recovers interrupted work and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.queue == nil {
		m.mu.Unlock()
		return errors.New("workflow queue not configured")
	}
	if m.poster == nil {
		m.mu.Unlock()
		return errors.New("workflow poster not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.recover(ctx)

	switch m.mode {
	case ModeBatch:
		go m.runBatches(runCtx)
	default:
		go m.runTrigger(runCtx)
		stats, err := m.queue.Stats(ctx)
		if err != nil {
			m.logger.Warn("queue stats unavailable at start; trigger stays disarmed", zap.Error(err))
		} else if stats[queue.StatusPending] > 0 {
			m.Arm()
		}
	}
	m.logger.Info("workflow started",
		zap.String("mode", string(m.mode)),
		zap.String("retention", string(m.retention)),
	)
	return nil
}

// Stop terminates background processing and waits for completion. A job
// interrupted mid-post stays in flight and is returned to pending on the
// next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// recover finishes removal of jobs confirmed posted before a crash and
// returns jobs that were in flight to pending.
func (m *Manager) recover(ctx context.Context) {
	if purged, err := m.queue.PurgePosted(ctx); err != nil {
		logging.WarnWithContext(m.logger, "purge of posted jobs failed", "queue_purge_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check queue database access"),
			zap.String(logging.FieldImpact, "posted jobs may linger in the queue"),
		)
	} else if purged > 0 {
		m.logger.Info("removed jobs confirmed posted before restart", zap.Int64("count", purged))
	}
	if reset, err := m.queue.ResetInFlight(ctx); err != nil {
		logging.WarnWithContext(m.logger, "reset of in-flight jobs failed", "queue_reset_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check queue database access"),
			zap.String(logging.FieldImpact, "interrupted jobs will not be retried"),
		)
	} else if reset > 0 {
		m.logger.Info("returned interrupted jobs to pending", zap.Int64("count", reset))
	}
}

// Arm starts the trigger ticker if it is not already running. It is a no-op
// in batch mode.
func (m *Manager) Arm() {
	m.signalArm(false)
}

func (m *Manager) signalArm(reset bool) {
	if m.mode != ModeTrigger {
		return
	}
	select {
	case m.armCh <- reset:
	default:
		// A pending signal already covers this request unless it asked
		// for a reset and the queued one did not.
		if reset {
			select {
			case <-m.armCh:
			default:
			}
			select {
			case m.armCh <- true:
			default:
			}
		}
	}
}

// Resume drains whatever is pending: in trigger mode it arms the ticker, in
// batch mode it schedules every pending job as one run.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	pending, err := m.queue.List(ctx, queue.StatusPending)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if m.mode == ModeTrigger {
		m.Arm()
		return len(pending), nil
	}
	ids := make([]int64, 0, len(pending))
	for _, job := range pending {
		ids = append(ids, job.ID)
	}
	m.enqueueRun(ids)
	return len(ids), nil
}

func (m *Manager) runTrigger(ctx context.Context) {
	defer m.wg.Done()

	var ticker Ticker
	var tick <-chan time.Time
	disarm := func() {
		if ticker != nil {
			ticker.Stop()
		}
		ticker, tick = nil, nil
		m.setArmed(false, time.Time{})
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return
		case reset := <-m.armCh:
			if ticker != nil && !reset {
				continue
			}
			if ticker != nil {
				ticker.Stop()
			}
			interval := m.triggerInterval(ctx)
			ticker = m.clock.NewTicker(interval)
			tick = ticker.C()
			m.setArmed(true, m.clock.Now().Add(interval))
			m.logger.Info("trigger armed",
				zap.Duration("interval", interval),
				zap.String(logging.FieldEventType, "trigger_armed"),
			)
		case <-tick:
			if more := m.fire(ctx); !more {
				disarm()
				m.logger.Info("queue empty; trigger disarmed",
					zap.String(logging.FieldEventType, "trigger_disarmed"),
				)
				continue
			}
			if ticker != nil {
				m.setArmed(true, m.clock.Now().Add(m.triggerInterval(ctx)))
			}
		}
	}
}

func (m *Manager) runBatches(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wakeCh:
		}
		for {
			ids, ok := m.popRun()
			if !ok {
				break
			}
			if err := m.RunBatch(ctx, ids); err != nil && errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) enqueueRun(ids []int64) {
	if len(ids) == 0 {
		return
	}
	m.mu.Lock()
	m.runs = append(m.runs, append([]int64(nil), ids...))
	m.mu.Unlock()
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

func (m *Manager) popRun() ([]int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, false
	}
	ids := m.runs[0]
	m.runs = m.runs[1:]
	return ids, true
}

func (m *Manager) setArmed(armed bool, next time.Time) {
	m.mu.Lock()
	m.armed = armed
	m.nextFiring = next
	m.mu.Unlock()
}
