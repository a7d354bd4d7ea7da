package dedupe

import (
	"context"
	"fmt"
	"sync"
)

// Func is the unit of work a Group collapses. The context it receives is
// detached from any single waiter and is cancelled only when every waiter
// has given up.
type Func func(ctx context.Context) (any, error)

// Result carries the settled outcome of a collapsed call.
type Result struct {
	// Val is the value produced by the underlying call.
	Val any

	// Err is the failure produced by the underlying call.
	Err error

	// Shared reports whether the outcome was delivered to more than one
	// waiter.
	Shared bool
}

// call is the pending-request entry for one key. The entry is removed from
// the group's map under the same lock that publishes the outcome, so a new
// caller can never double-trigger the work or miss the fan-out.
type call struct {
	done    chan struct{}
	val     any
	err     error
	waiters int
	dups    int
	cancel  context.CancelFunc
}

// Group collapses concurrent calls with the same key into one underlying
// execution, fanning the single outcome out to every waiter.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Outcome: all waiters for a key observe the identical value or error.
// - Cancellation: a waiter abandoning the call does not disturb the others;
//   the underlying call is cancelled only when the last waiter leaves.
type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

// New creates an empty Group.
func New() *Group {
	return &Group{calls: make(map[string]*call)}
}

// Do executes fn for key, unless an execution for key is already in flight,
// in which case the caller joins it as a waiter and fn is not invoked. The
// returned Result reports whether the outcome was shared with other waiters.
//
// If ctx is cancelled before the call settles, Do returns ctx's error and
// the caller stops waiting; the in-flight execution continues for the
// remaining waiters.
func (g *Group) Do(ctx context.Context, key string, fn Func) Result {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		c.waiters++
		c.dups++
		g.mu.Unlock()
		return g.wait(ctx, c)
	}

	// The execution must outlive any individual waiter, so it runs on a
	// context detached from the initiating caller.
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	g.calls[key] = c
	g.mu.Unlock()

	go g.run(callCtx, key, c, fn)

	return g.wait(ctx, c)
}

// Pending returns the number of keys with an execution in flight.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *Group) run(ctx context.Context, key string, c *call, fn Func) {
	defer c.cancel()

	val, err := invoke(ctx, fn)

	g.mu.Lock()
	c.val = val
	c.err = err
	delete(g.calls, key)
	close(c.done)
	g.mu.Unlock()
}

func (g *Group) wait(ctx context.Context, c *call) Result {
	select {
	case <-c.done:
		g.mu.Lock()
		shared := c.dups > 0
		g.mu.Unlock()
		return Result{Val: c.val, Err: c.err, Shared: shared}
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		last := c.waiters == 0
		g.mu.Unlock()
		if last {
			c.cancel()
		}
		return Result{Err: ctx.Err()}
	}
}

// invoke runs fn, converting a panic into an error so one misbehaving
// operation cannot take down every waiter's goroutine unannounced.
func invoke(ctx context.Context, fn Func) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dedupe: operation panicked: %v", r)
		}
	}()
	return fn(ctx)
}
