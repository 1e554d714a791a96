package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// =============================================================================
// Coroutines: promise, future handle, frame goroutine
// =============================================================================
//
// A coroutine is a parked goroutine driven synchronously by whichever
// worker executes its promise job. The worker hands its context to the
// frame over resume and blocks on yield until the frame reaches its next
// suspension point, so exactly one of {worker, frame} runs at any time
// and the frame always executes on the scheduling worker's slice.
//
// While the coroutine is live its job carries continuation == itself:
// when the children it awaited bring the child count to zero, the
// completion protocol re-enqueues the promise, which is what resumes the
// body. At final suspension the continuation is cleared and the parent
// recorded at creation (or by the latest awaiter) is attached, so the
// normal child_finished path wakes the awaiter.

// frameChans is the channel pair a worker uses to drive one frame slice.
// Recycled through a pool once the frame has exited normally. The pool
// only covers the channels; the frame's memory reservation itself comes
// from the system allocator (see promise.arena).
type frameChans struct {
	resume chan context.Context
	yield  chan struct{}
}

var framePool = sync.Pool{
	New: func() any {
		return &frameChans{
			resume: make(chan context.Context),
			yield:  make(chan struct{}),
		}
	},
}

// frameArenaSize is the scratch reservation made for every coroutine
// frame through the system allocator.
const frameArenaSize = 512

// frameCanceled is panicked into a parked frame whose promise was
// released or discarded before the body could finish.
type frameCanceled struct{}

// promise is the shared state between a Coro handle (consumer side) and
// the frame goroutine (producer side).
type promise[T any] struct {
	job Job
	sys *System

	// arena is the frame's memory reservation, obtained from the system
	// allocator when the promise is created and returned when the last
	// reference drops. A pooled allocator recycles frame memory across
	// coroutines.
	arena []byte

	fc         *frameChans
	cancel     chan struct{}
	cancelOnce sync.Once

	// useCount starts at 2: one reference for the consumer handle, one
	// for the frame. Whoever drops the last reference releases the
	// frame resources.
	useCount  atomic.Int32
	finalized atomic.Bool
	ready     atomic.Bool

	result T
	err    error
}

// resume drives one slice of the frame on the calling worker. Resuming
// an already finalized coroutine is a completed no-op slice: the fresh
// awaiter recorded in coroParent is attached as parent so the ordinary
// completion path notifies it.
func (p *promise[T]) resume(ctx context.Context) {
	if p.finalized.Load() {
		p.job.parent = p.job.coroParent
		return
	}
	p.fc.resume <- ctx
	<-p.fc.yield
}

// park blocks the frame until the next resume, returning the driving
// worker's context. A canceled promise unwinds the frame instead.
func (p *promise[T]) park() context.Context {
	select {
	case ctx := <-p.fc.resume:
		return ctx
	case <-p.cancel:
		panic(frameCanceled{})
	}
}

// frame is the body wrapper running on the frame goroutine.
func (p *promise[T]) frame(body func(cc *CoroCtx[T]) T) {
	cc := &CoroCtx[T]{p: p}
	defer p.release()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(frameCanceled); ok {
				return
			}
			p.sys.opts.PanicHandler.HandlePanic(
				WorkerIndex(cc.ctx), p.job.tags, r, debug.Stack())
			var zero T
			p.finish(zero, fmt.Errorf("coroutine body panicked: %v", r))
		}
	}()

	// Initial suspension: nothing runs until the promise is scheduled.
	cc.ctx = p.park()
	p.finish(body(cc), nil)
}

// finish records the result, performs the final suspension bookkeeping
// and hands control back to the driving worker. The deferred parent
// attach happens here: children awaited during the body notified this
// promise directly, the creation-time parent only learns about the
// coroutine now, through the normal completion path.
func (p *promise[T]) finish(v T, err error) {
	p.result = v
	p.err = err
	p.job.continuation = nil
	p.job.parent = p.job.coroParent
	p.finalized.Store(true)
	p.ready.Store(true)
	p.fc.yield <- struct{}{}
}

// release drops one of the two references. The last reference returns
// the arena to the allocator and recycles the channel pair; if the
// frame never finalized it is canceled first, and the channels are left
// to the GC because the unwinding frame may still be selecting on them.
func (p *promise[T]) release() {
	if p.useCount.Add(-1) != 0 {
		return
	}
	p.sys.opts.Allocator.Deallocate(p.arena)
	p.arena = nil
	if !p.finalized.Load() {
		p.cancelFrame()
		return
	}
	framePool.Put(p.fc)
}

func (p *promise[T]) cancelFrame() {
	p.cancelOnce.Do(func() { close(p.cancel) })
}

// =============================================================================
// CoroCtx: the suspension surface visible to a coroutine body
// =============================================================================

// CoroCtx is passed to a coroutine body. It carries the driving worker's
// context (refreshed at every suspension point) and the suspension
// operations. It must only be used from the body's own goroutine.
type CoroCtx[T any] struct {
	p   *promise[T]
	ctx context.Context
}

// Context returns the context of the worker currently driving the body.
// It changes across suspension points when the body migrates workers.
func (cc *CoroCtx[T]) Context() context.Context { return cc.ctx }

// Await schedules one unit as a child and suspends until its subtree
// has completed. Awaiting nil is a no-op.
func (cc *CoroCtx[T]) Await(u Unit) {
	cc.AwaitAll(u)
}

// AwaitAll schedules every unit as a child of this coroutine and
// suspends until all their subtrees have completed. Mixed result types
// erase to Unit, so a heterogeneous set is awaited by combining the
// slices. An empty (or all-nil) set skips the suspension entirely.
//
// The child count cannot reach zero while the units are being scheduled
// because the executing worker still holds the slice's own count; the
// last finishing child re-enqueues this promise only after the slice
// has been given up.
func (cc *CoroCtx[T]) AwaitAll(units ...Unit) {
	p := cc.p
	live := 0
	for _, u := range units {
		if u == nil {
			continue
		}
		j := u.schedJob()
		if j == nil {
			continue
		}
		p.job.children.Add(1)
		if j.kind == JobKindPromise {
			j.coroParent = &p.job
		} else {
			j.parent = &p.job
		}
		p.sys.enqueue(j)
		live++
	}
	if live == 0 {
		return
	}
	p.fc.yield <- struct{}{}
	cc.ctx = p.park()
}

// YieldTo moves the body to the given worker. If the body is already
// running there it returns immediately; otherwise it suspends, and the
// completion protocol re-enqueues the promise on that worker's local
// queue. The pin persists for later re-enqueues.
func (cc *CoroCtx[T]) YieldTo(worker int32) {
	p := cc.p
	if worker == WorkerIndex(cc.ctx) {
		return
	}
	p.job.affinity = worker
	p.fc.yield <- struct{}{}
	cc.ctx = p.park()
}

// Yield publishes an intermediate value and suspends without
// finalizing. The current awaiter is notified exactly as if the
// coroutine had finished; the next await of the same handle re-drives
// the body past this point. Only a return finalizes the coroutine.
func (cc *CoroCtx[T]) Yield(v T) {
	p := cc.p
	p.result = v
	p.ready.Store(true)
	p.job.continuation = nil
	p.job.parent = p.job.coroParent
	p.fc.yield <- struct{}{}
	cc.ctx = p.park()

	// Re-driven by a new awaiter: back to the live-promise shape.
	p.job.parent = nil
	p.job.continuation = &p.job
	p.ready.Store(false)
}

// =============================================================================
// Coro: the consumer-side future handle
// =============================================================================

// Coro is the future half of a coroutine. It is a schedulable Unit:
// submit it with Schedule or await it from another coroutine. The
// result stays readable after the coroutine finishes, for as long as
// the handle is held.
type Coro[T any] struct {
	p        *promise[T]
	released atomic.Bool
}

// NewCoro creates a coroutine. The body starts suspended and runs only
// once the returned handle is scheduled or awaited. The frame's memory
// reservation comes from the system's allocator; a reservation the
// allocator cannot serve is fatal, since the coroutine cannot exist
// without its frame.
func NewCoro[T any](s *System, body func(cc *CoroCtx[T]) T) *Coro[T] {
	arena := s.opts.Allocator.Allocate(frameArenaSize)
	if cap(arena) < frameArenaSize {
		panic("jobsystem: coroutine frame allocation failed")
	}
	p := &promise[T]{
		sys:    s,
		arena:  arena,
		fc:     framePool.Get().(*frameChans),
		cancel: make(chan struct{}),
	}
	p.job.reset()
	p.job.kind = JobKindPromise
	p.job.continuation = &p.job
	p.job.run = p.resume
	p.job.abandon = p.cancelFrame
	p.useCount.Store(2)
	go p.frame(body)
	return &Coro[T]{p: p}
}

// With sets affinity and trace tags, mirroring the shape of a
// submission tuple (affinity, type, id). It returns the handle for
// chaining.
func (c *Coro[T]) With(affinity int32, typ int32, id int32) *Coro[T] {
	c.p.job.affinity = affinity
	c.p.job.tags = Tags{Type: typ, ID: id}
	return c
}

// Get returns the current result: the final value after the coroutine
// returned, the latest yielded value while it is generating, or the
// zero value if nothing is ready yet.
func (c *Coro[T]) Get() T {
	if c.p.ready.Load() {
		return c.p.result
	}
	var zero T
	return zero
}

// Ready reports whether a result (final or yielded) is available.
func (c *Coro[T]) Ready() bool { return c.p.ready.Load() }

// Err returns the error of a finished coroutine, non-nil only when the
// body panicked. It returns nil while the coroutine is still running.
func (c *Coro[T]) Err() error {
	if c.p.finalized.Load() {
		return c.p.err
	}
	return nil
}

// Release drops the consumer's reference. After Release the result must
// not be read. Releasing a coroutine that has not finished does not
// stop it: the frame keeps its own reference and drops it when the body
// exits. A queued promise that never runs is cleaned up at system
// teardown.
// Release is idempotent.
func (c *Coro[T]) Release() {
	if c.released.Swap(true) {
		return
	}
	c.p.release()
}

func (c *Coro[T]) schedJob() *Job { return &c.p.job }

// Gather erases a homogeneous slice of handles to []Unit so sets of
// different result types can be combined into one AwaitAll call.
func Gather[T any](cs ...*Coro[T]) []Unit {
	us := make([]Unit, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			us = append(us, c)
		}
	}
	return us
}
