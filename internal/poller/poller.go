// Package poller drives the periodic refresh of the tracked meter and keeps
// the latest snapshot for the renderer.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/threshold"
)

// DefaultInterval is the refresh cadence.
const DefaultInterval = 5 * time.Second

// Fetcher retrieves one reading from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) (meter.Reading, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (meter.Reading, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (meter.Reading, error) { return f(ctx) }

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the refresh cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxInFlight bounds the number of outstanding fetches.
func WithMaxInFlight(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxInFlight = int64(n)
		}
	}
}

// WithLogger sets the sink for fetch failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns the poll state. State is only written by the completion
// handler, under mu; readers load the snapshot pointer without locking.
type Controller struct {
	fetcher     Fetcher
	interval    time.Duration
	maxInFlight int64
	log         *zap.Logger
	now         func() time.Time

	state   atomic.Pointer[State]
	seq     atomic.Uint64
	updates chan struct{}

	mu      sync.Mutex
	running bool
	gen     uint64
	applied uint64
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	done    chan struct{}
}

// New creates a stopped controller in the Loading phase.
func New(f Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:     f,
		interval:    DefaultInterval,
		maxInFlight: 1,
		log:         zap.NewNop(),
		now:         time.Now,
		updates:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(&State{Phase: Loading})
	return c
}

// Interval returns the refresh cadence.
func (c *Controller) Interval() time.Duration { return c.interval }

// Start fetches once immediately and then once per interval until Stop is
// called or ctx is done. Start on a running controller does nothing.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	c.gen++
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.sem = semaphore.NewWeighted(c.maxInFlight)
	c.done = make(chan struct{})
	c.running = true

	c.dispatch(c.ctx, c.gen, c.sem)
	go c.loop(c.ctx, c.gen, c.sem, c.done)
}

// Stop cancels the timer and in-flight fetches. Once Stop returns, no
// completion from the stopped lifecycle changes the state. Stop is safe to
// call on a controller that was never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.gen++
	c.cancel()
	done := c.done
	c.mu.Unlock()

	<-done
}

// Running reports whether the refresh lifecycle is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Refresh dispatches an out-of-cycle fetch. It reports false if the
// controller is stopped or the in-flight bound is reached.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	ctx, gen, sem := c.ctx, c.gen, c.sem
	c.mu.Unlock()

	return c.dispatch(ctx, gen, sem)
}

// State returns the current snapshot. It never blocks.
func (c *Controller) State() State {
	return *c.state.Load()
}

// Fields classifies the current reading.
func (c *Controller) Fields() []threshold.Field {
	return c.State().Fields()
}

// Updates is signalled after each applied state change. Signals coalesce;
// receivers should read State afterwards.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) loop(ctx context.Context, gen uint64, sem *semaphore.Weighted, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.dispatch(ctx, gen, sem)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, gen uint64, sem *semaphore.Weighted) bool {
	if !sem.TryAcquire(1) {
		c.log.Debug("fetch still in flight, skipping tick")
		return false
	}
	seq := c.seq.Add(1)

	go func() {
		r, err := c.fetcher.Fetch(ctx)
		sem.Release(1)
		c.complete(gen, seq, r, err)
	}()
	return true
}

func (c *Controller) complete(gen, seq uint64, r meter.Reading, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	if seq < c.applied {
		c.log.Debug("discarding out-of-order completion",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", c.applied),
		)
		return
	}
	c.applied = seq

	now := c.now()
	next := *c.state.Load()
	next.Seq = seq
	next.LastAttempt = now

	if err == nil {
		next.Phase = Ready
		next.Reading = r
		next.HasReading = true
		next.LastSuccess = now
		next.LastErr = nil
		next.Failures = 0
	} else {
		next.LastErr = err
		next.Failures++
		if next.HasReading {
			next.Phase = Ready
		} else {
			next.Phase = Error
		}
		c.log.Warn("fetch failed",
			zap.Uint64("seq", seq),
			zap.Int("failures", next.Failures),
			zap.Bool("stale", next.HasReading),
			zap.Error(err),
		)
	}

	c.state.Store(&next)

	select {
	case c.updates <- struct{}{}:
	default:
	}
}
