package core

import "sync/atomic"

// =============================================================================
// JobQueue: lock-free intrusive job queue
// =============================================================================

// JobQueue is a lock-free, intrusive, singly-linked job queue. Producers
// push by CAS on the head, so push never blocks and any number of
// goroutines may produce concurrently.
//
// Two consumption disciplines exist:
//
//   - LIFO (NewLIFOJobQueue): pop detaches the head by CAS. Safe for any
//     number of consumers.
//   - FIFO-biased (NewFIFOJobQueue): pop walks to the tail and detaches
//     it with a plain store on the predecessor's link. The walk is only
//     safe with a single consumer; that is the contract. With one
//     element left, pop falls back to the head CAS, where a concurrent
//     producer may rarely win the race first.
//
// A job may only re-enter a queue after it has completed and left the
// previous one, so the head CAS needs no ABA protection.
type JobQueue struct {
	fifo bool
	head atomic.Pointer[Job]
	size atomic.Int32
}

// NewLIFOJobQueue returns a multi-consumer LIFO queue.
func NewLIFOJobQueue() *JobQueue {
	return &JobQueue{}
}

// NewFIFOJobQueue returns a FIFO-biased queue. Exactly one goroutine may
// consume from it.
func NewFIFOJobQueue() *JobQueue {
	return &JobQueue{fifo: true}
}

// Push prepends the job. Wait-free up to CAS retries.
func (q *JobQueue) Push(j *Job) {
	for {
		head := q.head.Load()
		j.next.Store(head)
		if q.head.CompareAndSwap(head, j) {
			q.size.Add(1)
			return
		}
	}
}

// Pop removes a job, or returns nil when the queue is empty.
func (q *JobQueue) Pop() *Job {
	head := q.head.Load()
	if head == nil {
		return nil
	}

	if q.fifo {
		// Walk to the tail. The single-consumer contract makes the
		// plain detach below race-free against other pops; pushes only
		// ever touch the head.
		for head.next.Load() != nil {
			last := head
			head = head.next.Load()
			if head.next.Load() == nil {
				last.next.Store(nil)
				q.size.Add(-1)
				return head
			}
		}
	}

	// LIFO, or a single element left: detach from the head. Producers
	// may be pushing concurrently, so CAS until stable.
	for head != nil {
		if q.head.CompareAndSwap(head, head.next.Load()) {
			head.next.Store(nil)
			q.size.Add(-1)
			return head
		}
		head = q.head.Load()
	}
	return nil
}

// Empty reports whether the queue currently has no jobs. Advisory only
// under concurrency.
func (q *JobQueue) Empty() bool {
	return q.head.Load() == nil
}

// Len returns the approximate number of queued jobs. Advisory only
// under concurrency; used for depth sampling and stats.
func (q *JobQueue) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Drain pops every job and hands it to fn. Used at teardown to release
// queued jobs that will never run.
func (q *JobQueue) Drain(fn func(*Job)) {
	for {
		j := q.Pop()
		if j == nil {
			return
		}
		if fn != nil {
			fn(j)
		}
	}
}
