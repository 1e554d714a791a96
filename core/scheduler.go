package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// noopLimit is the number of consecutive empty polls before an idle
// worker goes to sleep.
const noopLimit = 20

// =============================================================================
// System: worker pool, queues, dispatch
// =============================================================================

// System owns the worker goroutines and the job queues. Each worker has
// a FIFO-biased local queue (consumed only by that worker) and a LIFO
// global queue (consumed by anyone). Jobs with an affinity land on the
// pinned worker's local queue; everything else is spread round-robin
// over the global queues.
type System struct {
	opts    SystemOptions
	workers int32

	locals  []*JobQueue
	globals []*JobQueue
	rr      atomic.Uint32

	terminated atomic.Bool
	barrier    atomic.Int32
	wg         sync.WaitGroup
	joinOnce   sync.Once

	jobPool sync.Pool

	trace *TraceRecorder
	delay *DelayManager

	executed atomic.Int64
	stolen   atomic.Int64

	baseCtx context.Context
}

// NewSystem builds and starts a job system. Workers with index >=
// StartIndex run on their own goroutines immediately; lower indices are
// left for the caller to drive via RunWorker.
func NewSystem(opts SystemOptions) *System {
	opts = opts.withDefaults()

	n := opts.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if opts.StartIndex < 0 {
		opts.StartIndex = 0
	}
	if opts.StartIndex > 1 {
		// Only worker 0 can be caller-driven.
		opts.StartIndex = 1
	}

	s := &System{
		opts:    opts,
		workers: int32(n),
		locals:  make([]*JobQueue, n),
		globals: make([]*JobQueue, n),
		baseCtx: context.Background(),
	}
	for i := range n {
		s.locals[i] = NewFIFOJobQueue()
		s.globals[i] = NewLIFOJobQueue()
	}
	s.jobPool.New = func() any {
		j := &Job{}
		j.reset()
		j.pooled = true
		return j
	}
	s.trace = NewTraceRecorder(n, opts.Allocator, opts.TracePath)
	s.delay = NewDelayManager(s)

	// The barrier counts every worker, including a dormant worker 0.
	// No job runs before all workers have entered their loops.
	s.barrier.Store(int32(n))

	s.opts.Logger.Info("job system starting",
		F("workers", n), F("start_index", opts.StartIndex))

	for i := opts.StartIndex; i < n; i++ {
		s.wg.Add(1)
		go func(idx int32) {
			defer s.wg.Done()
			s.threadTask(idx)
		}(int32(i))
	}
	return s
}

// WorkerCount returns the number of workers in the system.
func (s *System) WorkerCount() int32 { return s.workers }

// Trace returns the system's trace recorder.
func (s *System) Trace() *TraceRecorder { return s.trace }

// RunWorker runs worker idx's loop on the calling goroutine. It returns
// after Terminate. Intended for driving worker 0 from a main thread when
// the system was built with StartIndex 1.
func (s *System) RunWorker(idx int32) {
	if idx < 0 || idx >= s.workers {
		s.opts.Logger.Warn("RunWorker with invalid index", F("index", idx))
		return
	}
	s.threadTask(idx)
}

// threadTask is the per-worker loop.
func (s *System) threadTask(idx int32) {
	// Start barrier: wait until every worker has arrived, so no job can
	// observe a partially started system.
	s.barrier.Add(-1)
	for s.barrier.Load() > 0 {
		if s.terminated.Load() {
			return
		}
		time.Sleep(100 * time.Nanosecond)
	}

	ctx := withWorkerIndex(s.baseCtx, idx)

	noop := noopLimit
	for !s.terminated.Load() {
		j := s.locals[idx].Pop()
		if j == nil {
			j = s.stealWork(idx)
		}
		if j != nil {
			s.execute(ctx, idx, j)
			noop = noopLimit
			continue
		}
		if noop--; noop == 0 {
			noop = noopLimit
			s.opts.Metrics.RecordQueueDepth(idx, s.locals[idx].Len())
			if idx > 0 {
				time.Sleep(s.opts.SleepInterval)
			} else {
				// Worker 0 stays responsive for main-thread drivers.
				runtime.Gosched()
			}
		}
	}
	s.opts.Logger.Debug("worker exiting", F("worker", idx))
}

// stealWork scans the global queues starting at the worker's own index.
// Starting positions spread out over the queues, which keeps idle
// workers from all hammering the same head.
func (s *System) stealWork(idx int32) *Job {
	n := s.workers
	for k := int32(0); k < n; k++ {
		q := s.globals[(idx+k)%n]
		if j := q.Pop(); j != nil {
			if k > 0 {
				s.stolen.Add(1)
				s.opts.Metrics.RecordSteal(idx)
			}
			return j
		}
	}
	return nil
}

// execute runs one slice of a job on worker idx: resets the self count,
// invokes the body, then drops the self count. Bringing the counter to
// zero finishes the job.
func (s *System) execute(ctx context.Context, idx int32, j *Job) {
	jctx := withCurrentJob(ctx, j)
	j.children.Store(1)

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.opts.Metrics.RecordJobPanic(idx)
				s.opts.PanicHandler.HandlePanic(idx, j.tags, r, debug.Stack())
			}
		}()
		j.run(jctx)
	}()
	end := time.Now()

	s.executed.Add(1)
	s.trace.Record(idx, start, end, j.tags)
	s.opts.Metrics.RecordJobExecuted(idx, j.kind, end.Sub(start))

	if j.children.Add(-1) == 0 {
		s.onFinished(j)
	}
}

// enqueue places a job on a queue according to its affinity. An affinity
// outside [0, workers) behaves like AnyWorker.
func (s *System) enqueue(j *Job) {
	if a := j.affinity; a >= 0 && a < s.workers {
		s.locals[a].Push(j)
		return
	}
	n := uint32(s.workers)
	s.globals[s.rr.Add(1)%n].Push(j)
}

// =============================================================================
// Public scheduling surface
// =============================================================================

// Schedule submits units to the system. If the context carries a current
// job (i.e. the caller is itself a running job), every submitted unit
// becomes a child of it: the caller will not finish before the units do.
// Use WithoutParent(ctx) (or a context outside any job) to submit
// orphans instead.
func (s *System) Schedule(ctx context.Context, units ...Unit) {
	if s.terminated.Load() {
		return
	}
	parent := CurrentJob(ctx)
	for _, u := range units {
		if u == nil {
			continue
		}
		j := u.schedJob()
		if j == nil {
			continue
		}
		if parent != nil {
			parent.children.Add(1)
		}
		if j.kind == JobKindPromise {
			// The promise notifies its creator only at final
			// suspension; remember it separately.
			j.coroParent = parent
		} else {
			j.parent = parent
		}
		s.enqueue(j)
	}
}

// ScheduleFunc submits a bare callable. The job record comes from the
// system's pool and is recycled when the callable's subtree finishes.
func (s *System) ScheduleFunc(ctx context.Context, body func(ctx context.Context)) {
	if s.terminated.Load() || body == nil {
		return
	}
	j := s.jobPool.Get().(*Job)
	j.run = body
	if parent := CurrentJob(ctx); parent != nil {
		parent.children.Add(1)
		j.parent = parent
	}
	s.enqueue(j)
}

// Continuation installs a unit as the continuation of the calling job.
// The continuation is scheduled after the caller's entire subtree has
// completed and is joined to the caller's parent.
//
// Valid only inside a running plain callable. Calls from outside a job
// or from a coroutine body are ignored; coroutines return results with
// their normal return path instead.
func (s *System) Continuation(ctx context.Context, u Unit) {
	cur := CurrentJob(ctx)
	if cur == nil || cur.kind == JobKindPromise || u == nil {
		s.opts.Logger.Warn("Continuation ignored: not inside a running callable")
		return
	}
	cur.continuation = u.schedJob()
}

// ScheduleAfter submits units after the given delay. Delayed units are
// orphans: the submitting job may be long gone when the timer fires.
func (s *System) ScheduleAfter(delay time.Duration, units ...Unit) {
	s.delay.Add(delay, units)
}

// Terminate requests all workers to exit their loops. Running jobs
// finish their current slice; queued jobs are dropped at join time.
// Calling Terminate again is a no-op.
func (s *System) Terminate() {
	if s.terminated.Swap(true) {
		return
	}
	s.delay.Stop()
	s.opts.Logger.Info("job system terminating")
}

// WaitForTermination joins all worker goroutines, discards whatever is
// left in the queues and flushes the trace recorder. Safe to call more
// than once and after the workers have already exited.
func (s *System) WaitForTermination() {
	s.wg.Wait()
	s.joinOnce.Do(func() {
		for i := range s.locals {
			s.locals[i].Drain(s.discard)
			s.globals[i].Drain(s.discard)
		}
		if s.trace.Enabled() {
			if err := s.trace.Flush(); err != nil {
				s.opts.Logger.Error("trace flush failed", F("err", err))
			}
		}
		s.opts.Logger.Info("job system stopped",
			F("executed", s.executed.Load()), F("stolen", s.stolen.Load()))
	})
}

// discard releases a job that will never run.
func (s *System) discard(j *Job) {
	if j.abandon != nil {
		j.abandon()
	}
	if j.kind == JobKindCallable {
		s.recycleJob(j)
	}
}

// recycleJob returns a pool-owned job record to the pool.
func (s *System) recycleJob(j *Job) {
	if !j.pooled {
		return
	}
	j.reset()
	j.pooled = true
	s.jobPool.Put(j)
}

// =============================================================================
// Stats
// =============================================================================

// SchedulerStats is a point-in-time snapshot of scheduler counters.
type SchedulerStats struct {
	Workers  int32
	Executed int64
	Stolen   int64
	Delayed  int
}

// Stats returns a snapshot of the scheduler counters.
func (s *System) Stats() SchedulerStats {
	return SchedulerStats{
		Workers:  s.workers,
		Executed: s.executed.Load(),
		Stolen:   s.stolen.Load(),
		Delayed:  s.delay.Pending(),
	}
}
