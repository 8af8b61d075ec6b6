package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"autopost/internal/config"
	"autopost/internal/events"
	"autopost/internal/logging"
	"autopost/internal/notifications"
	"autopost/internal/queue"
)

// Manager owns the posting queue consumer. It is the only component that
// moves jobs out of the pending state.
type Manager struct {
	cfg       *config.Config
	queue     queue.Queue
	poster    Poster
	hub       *events.Hub
	notifier  notifications.Service
	logger    *zap.Logger
	clock     Clock
	mode      Mode
	retention RetentionPolicy

	// runMu serializes trigger firings and batch runs so at most one job
	// is ever in flight.
	runMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	armed      bool
	nextFiring time.Time
	inFlight   *queue.Job
	lastErr    error
	lastPosted time.Time
	runs       [][]int64

	armCh  chan bool
	wakeCh chan struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithNotifier replaces the notifier built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithEventHub publishes status events to hub instead of a private one.
func WithEventHub(hub *events.Hub) ManagerOption {
	return func(m *Manager) {
		if hub != nil {
			m.hub = hub
		}
	}
}

// NewManager constructs a workflow manager for cfg. The queue and poster are
// owned by the caller.
func NewManager(cfg *config.Config, q queue.Queue, poster Poster, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	retention, err := ParseRetentionPolicy(cfg.Posting.FailureRetention)
	if err != nil {
		retention = RetainFailed
	}
	mode := Mode(cfg.Posting.Mode)
	if mode != ModeBatch {
		mode = ModeTrigger
	}
	m := &Manager{
		cfg:       cfg,
		queue:     q,
		poster:    poster,
		notifier:  notifications.NewService(cfg),
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		clock:     realClock{},
		mode:      mode,
		retention: retention,
		armCh:     make(chan bool, 1),
		wakeCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hub == nil {
		m.hub = events.NewHub(512)
	}
	return m
}

// Events exposes the hub status events are published to.
func (m *Manager) Events() *events.Hub {
	return m.hub
}

// Mode reports how the manager drains the queue.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Retention reports the failure retention policy in effect.
func (m *Manager) Retention() RetentionPolicy {
	return m.retention
}
