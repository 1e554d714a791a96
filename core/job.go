package core

import (
	"context"
	"sync/atomic"
)

// JobKind discriminates the two schedulable unit variants. Coroutine
// promises carry extra destruction semantics, so the completion protocol
// needs to tell them apart from plain callables.
type JobKind int32

const (
	// JobKindCallable is a plain function that runs to return.
	JobKindCallable JobKind = iota

	// JobKindPromise is a coroutine promise. It may suspend and be
	// re-enqueued several times before it finishes.
	JobKindPromise
)

// Tags carry optional trace information for a schedulable unit.
// Type and ID are opaque to the scheduler and forwarded to the trace
// recorder unchanged. Negative values mean "untagged".
type Tags struct {
	Type int32
	ID   int32
}

// NoTags is the untagged tuple (-1, -1).
var NoTags = Tags{Type: -1, ID: -1}

// AnyWorker schedules a job on whichever worker picks it up first.
const AnyWorker int32 = -1

// =============================================================================
// Job: the universal scheduling node
// =============================================================================

// Job is the unit of scheduling. Both plain callables and coroutine
// promises are represented by a Job, so queues and the completion
// protocol handle them uniformly.
//
// Ownership: the submitter owns a Job until it is enqueued, then the
// scheduler owns it until onFinished. A Job is in at most one queue at a
// time; next is owned by that queue while enqueued.
type Job struct {
	// next is the intrusive queue link.
	next atomic.Pointer[Job]

	// children counts the job itself plus every unfinished child.
	// Initialized to 1 before each execution; reaching 0 triggers
	// onFinished exactly once.
	children atomic.Int32

	// parent is a non-owning back-reference. It stays valid while
	// children > 0 on the parent, because the parent cannot finish
	// before this job decrements it.
	parent *Job

	// coroParent remembers, for promise jobs only, the job that was
	// current when the coroutine was created. parent is set from it at
	// final suspension, so ordinary children awaited during the body
	// count separately from the final join.
	coroParent *Job

	// continuation is scheduled by onFinished after the whole subtree
	// of this job has completed. For a live promise it points at the
	// job itself, which is what re-enqueues a suspended coroutine.
	continuation *Job

	// affinity pins the job to a worker index, or AnyWorker.
	affinity int32

	kind JobKind
	tags Tags

	// pooled marks jobs owned by the system's job pool. Only those are
	// recycled in onFinished; user-held units are left to the GC.
	pooled bool

	// run executes one slice of the job on a worker. For callables this
	// is the body; for promises it drives the frame to its next
	// suspension point.
	run func(ctx context.Context)

	// abandon releases resources of a job that will never run again.
	// Set for promises, where a parked frame must be torn down when the
	// system drains its queues at shutdown.
	abandon func()
}

// reset wipes the job for reuse from the job pool.
func (j *Job) reset() {
	j.next.Store(nil)
	j.children.Store(1)
	j.parent = nil
	j.coroParent = nil
	j.continuation = nil
	j.affinity = AnyWorker
	j.kind = JobKindCallable
	j.tags = NoTags
	j.run = nil
	j.abandon = nil
}

// Kind returns the variant of this job.
func (j *Job) Kind() JobKind { return j.kind }

// Tags returns the trace tags of this job.
func (j *Job) Tags() Tags { return j.tags }

// Affinity returns the worker index this job is pinned to, or AnyWorker.
func (j *Job) Affinity() int32 { return j.affinity }

// Pending reports the current child count. Exposed for tests and stats.
func (j *Job) Pending() int32 { return j.children.Load() }

// =============================================================================
// Unit: what can be submitted to the system
// =============================================================================

// Unit is a schedulable unit: a wrapped callable or a coroutine future.
// Collections are expressed as []Unit; heterogeneous result types erase
// to Unit, so awaiting a mixed set is just awaiting the combined slice.
type Unit interface {
	// schedJob returns the Job to enqueue for this unit.
	schedJob() *Job
}

// FuncUnit wraps a plain callable into a schedulable unit.
type FuncUnit struct {
	job *Job
}

// Fn wraps a callable. The callable receives a context carrying the
// executing worker's index and the current job, see WorkerIndex and
// CurrentJob.
func Fn(body func(ctx context.Context)) *FuncUnit {
	j := &Job{}
	j.reset()
	j.run = body
	return &FuncUnit{job: j}
}

// With sets affinity and trace tags, mirroring the shape of a submission
// tuple (affinity, type, id). It returns the unit for chaining.
func (u *FuncUnit) With(affinity int32, typ int32, id int32) *FuncUnit {
	u.job.affinity = affinity
	u.job.tags = Tags{Type: typ, ID: id}
	return u
}

func (u *FuncUnit) schedJob() *Job { return u.job }

// =============================================================================
// Completion protocol
// =============================================================================

// onFinished runs when a job and its entire subtree have completed.
// If a continuation is installed it inherits the job's parent, which
// keeps the continuation inside the predecessor's subtree as seen from
// the grandparent, and is scheduled. The parent, if any, is then told
// that one more child has finished.
func (s *System) onFinished(j *Job) {
	if j.continuation != nil {
		if j.parent != nil {
			j.parent.children.Add(1)
			j.continuation.parent = j.parent
		}
		s.enqueue(j.continuation)
	}

	if j.parent != nil {
		s.childFinished(j.parent)
	}

	if j.kind == JobKindCallable {
		s.recycleJob(j)
	}
}

// childFinished decrements the parent's child count. Whoever brings the
// counter to zero finishes the parent; the counter can never be revived
// afterwards because no child of a finished parent is still running.
func (s *System) childFinished(p *Job) {
	if p.children.Add(-1) == 0 {
		s.onFinished(p)
	}
}
