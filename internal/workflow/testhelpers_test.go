package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"autopost/internal/automation"
	"autopost/internal/notifications"
	"autopost/internal/queue"
	"autopost/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances virtual time on Sleep and fires tickers on demand.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	slept   []time.Duration
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) NewTicker(d time.Duration) workflow.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1), interval: d}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires the most recently created live ticker.
func (c *fakeClock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		t := c.tickers[i]
		if t.stopped() {
			continue
		}
		c.now = c.now.Add(t.interval)
		select {
		case t.ch <- c.now:
		default:
		}
		return true
	}
	return false
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func (c *fakeClock) lastInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return 0
	}
	return c.tickers[len(c.tickers)-1].interval
}

type fakeTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	done     bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *fakeTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// stubPoster records posts and fails the calls listed in failAt.
type stubPoster struct {
	mu      sync.Mutex
	posts   []automation.Post
	failAt  map[int]error
	block   chan struct{}
	entered chan struct{}
}

func newStubPoster() *stubPoster {
	return &stubPoster{failAt: map[int]error{}}
}

func (p *stubPoster) Post(ctx context.Context, post automation.Post) error {
	p.mu.Lock()
	call := len(p.posts)
	p.posts = append(p.posts, post)
	err := p.failAt[call]
	block := p.block
	entered := p.entered
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *stubPoster) Posts() []automation.Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]automation.Post(nil), p.posts...)
}

// scriptedQueue overrides Get to reproduce races and read failures.
type scriptedQueue struct {
	queue.Queue
	stale  map[int64]bool
	getErr map[int64]error
}

func (q *scriptedQueue) Get(ctx context.Context, id int64) (*queue.Job, error) {
	if err := q.getErr[id]; err != nil {
		return nil, err
	}
	job, err := q.Queue.Get(ctx, id)
	if job != nil && q.stale[id] {
		job.Status = queue.StatusPending
	}
	return job, err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

func surfaceMissing() error {
	return &automation.DriverError{
		Kind: automation.KindComposeSurfaceNotFound,
		Step: automation.StepComposeSurface,
		Err:  automation.ErrConditionTimeout,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func intPtr(v int) *int { return &v }
