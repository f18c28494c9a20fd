package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNilFunc is returned by [Coordinator.Await] when no refresh function was configured.
var ErrNilFunc = errors.New("refresh: nil refresh function")

// Func performs one refresh call against the authentication service and
// publishes its outcome to the session before returning.
type Func func(ctx context.Context) error

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithTimeout bounds each refresh call. Zero (the default) leaves it unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithQueueHook is called with the queue depth each time a caller is queued.
func WithQueueHook(fn func(depth int)) Option {
	return func(c *Coordinator) { c.onQueue = fn }
}

// WithSettleHook is called once per refresh with its outcome, the time it took,
// and the number of queued callers about to be released.
func WithSettleHook(fn func(err error, elapsed time.Duration, waiters int)) Option {
	return func(c *Coordinator) { c.onSettle = fn }
}

// Stats is a point-in-time view of coordinator counters.
type Stats struct {
	Started   uint64
	Succeeded uint64
	Failed    uint64
	Queued    uint64
}

// Coordinator guarantees that at most one refresh is outstanding at a time.
// Callers arriving while a refresh is running are queued and released in
// arrival order once it settles, all with the same outcome.
type Coordinator struct {
	fn       Func
	timeout  time.Duration
	onQueue  func(int)
	onSettle func(error, time.Duration, int)

	mu       sync.Mutex
	inFlight bool
	queue    []*waiter

	started   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	queued    atomic.Uint64
}

type waiter struct {
	release chan error
	ack     chan struct{}
	once    sync.Once
}

func (w *waiter) done() {
	w.once.Do(func() { close(w.ack) })
}

// New returns a coordinator that runs fn for each refresh.
func New(fn Func, opts ...Option) *Coordinator {
	c := &Coordinator{fn: fn}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Await joins the current refresh or starts one.
//
// The caller that starts a refresh runs it and receives its outcome after every
// queued caller has been released. A queued caller receives the same outcome
// and a done function; the next queued caller is not released until done is
// called, which gives replays a FIFO start order. done is always non-nil and
// safe to call more than once.
//
// The refresh call itself is detached from ctx cancellation. A queued caller
// whose ctx ends leaves the queue and returns ctx.Err().
func (c *Coordinator) Await(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.fn == nil {
		return noop, ErrNilFunc
	}

	c.mu.Lock()
	if c.inFlight {
		w := &waiter{release: make(chan error, 1), ack: make(chan struct{})}
		c.queue = append(c.queue, w)
		depth := len(c.queue)
		c.mu.Unlock()

		c.queued.Add(1)
		if c.onQueue != nil {
			c.onQueue(depth)
		}
		return c.wait(ctx, w)
	}
	c.inFlight = true
	c.mu.Unlock()

	c.started.Add(1)
	start := time.Now()
	err := c.run(ctx)
	elapsed := time.Since(start)

	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		c.failed.Add(1)
	} else {
		c.succeeded.Add(1)
	}
	if c.onSettle != nil {
		c.onSettle(err, elapsed, len(pending))
	}

	for _, w := range pending {
		w.release <- err
		<-w.ack
	}

	return noop, err
}

func (c *Coordinator) wait(ctx context.Context, w *waiter) (func(), error) {
	select {
	case err := <-w.release:
		return w.done, err
	case <-ctx.Done():
	}

	c.mu.Lock()
	for i, q := range c.queue {
		if q == w {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	// Already handed to a drain loop: let it move on to the next waiter.
	w.done()
	return noop, ctx.Err()
}

func (c *Coordinator) run(ctx context.Context) error {
	rctx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.timeout)
		defer cancel()
	}
	return c.fn(rctx)
}

// InFlight reports whether a refresh is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the number of callers waiting on the running refresh.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Stats returns the coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Started:   c.started.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Queued:    c.queued.Load(),
	}
}

func noop() {}
