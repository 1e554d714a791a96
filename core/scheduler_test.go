package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSystem(t *testing.T, workers int) *System {
	t.Helper()
	s := NewSystem(SystemOptions{
		Workers: workers,
		Logger:  NewNoOpLogger(),
	})
	t.Cleanup(func() {
		s.Terminate()
		s.WaitForTermination()
	})
	return s
}

// TestSystem_ExecutesAllJobs tests basic fire-and-forget execution
// Main test items:
// 1. Every scheduled callable runs exactly once
// 2. Jobs scheduled from outside any job are orphans and still run
func TestSystem_ExecutesAllJobs(t *testing.T) {
	s := newTestSystem(t, 4)

	const n = 500
	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for range n {
		s.ScheduleFunc(context.Background(), func(ctx context.Context) {
			ran.Add(1)
			wg.Done()
		})
	}

	waitDone(t, &wg, 5*time.Second)
	if got := ran.Load(); got != n {
		t.Errorf("expected %d executions, got %d", n, got)
	}
}

// TestSystem_ChildrenAndContinuation tests the completion protocol
// Main test items:
// 1. A continuation runs only after every child has finished
// 2. Children scheduled with the job's context join the subtree
func TestSystem_ChildrenAndContinuation(t *testing.T) {
	s := newTestSystem(t, 4)

	const children = 20
	var finished atomic.Int32
	done := make(chan int32, 1)

	s.ScheduleFunc(context.Background(), func(ctx context.Context) {
		for range children {
			s.ScheduleFunc(ctx, func(ctx context.Context) {
				time.Sleep(time.Millisecond)
				finished.Add(1)
			})
		}
		s.Continuation(ctx, Fn(func(ctx context.Context) {
			done <- finished.Load()
		}))
	})

	select {
	case got := <-done:
		if got != children {
			t.Errorf("continuation ran with %d/%d children finished", got, children)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never ran")
	}
}

// TestSystem_OrphanSubmission tests WithoutParent
// Main test items:
// 1. A unit scheduled via WithoutParent does not delay the parent
// 2. The continuation can run before the orphan finishes
func TestSystem_OrphanSubmission(t *testing.T) {
	s := newTestSystem(t, 4)

	orphanGate := make(chan struct{})
	orphanDone := make(chan struct{})
	contDone := make(chan struct{})

	s.ScheduleFunc(context.Background(), func(ctx context.Context) {
		s.ScheduleFunc(WithoutParent(ctx), func(ctx context.Context) {
			<-orphanGate
			close(orphanDone)
		})
		s.Continuation(ctx, Fn(func(ctx context.Context) {
			close(contDone)
		}))
	})

	select {
	case <-contDone:
		// The orphan is still blocked on its gate, so the
		// continuation did not wait for it.
	case <-time.After(5 * time.Second):
		t.Fatal("continuation blocked on an orphan")
	}
	close(orphanGate)
	<-orphanDone
}

// TestSystem_Affinity tests worker pinning
// Main test items:
// 1. A unit with affinity k runs on worker k
// 2. AnyWorker units run on some valid worker
func TestSystem_Affinity(t *testing.T) {
	s := newTestSystem(t, 4)

	workers := make(chan int32, 8)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		u := Fn(func(ctx context.Context) {
			workers <- WorkerIndex(ctx)
			wg.Done()
		}).With(2, NoTags.Type, NoTags.ID)
		s.Schedule(context.Background(), u)
	}

	waitDone(t, &wg, 5*time.Second)
	close(workers)
	for w := range workers {
		if w != 2 {
			t.Errorf("pinned job ran on worker %d, want 2", w)
		}
	}
}

// TestSystem_RunWorker tests caller-driven worker 0
// Main test items:
// 1. With StartIndex 1, worker 0 runs on the calling goroutine
// 2. RunWorker returns after Terminate
// 3. RunWorker with an invalid index returns immediately
func TestSystem_RunWorker(t *testing.T) {
	s := NewSystem(SystemOptions{
		Workers:    2,
		StartIndex: 1,
		Logger:     NewNoOpLogger(),
	})
	defer s.WaitForTermination()

	ran := make(chan int32, 1)
	u := Fn(func(ctx context.Context) {
		ran <- WorkerIndex(ctx)
		s.Terminate()
	}).With(0, NoTags.Type, NoTags.ID)
	s.Schedule(context.Background(), u)

	s.RunWorker(3) // out of range, must not block

	returned := make(chan struct{})
	go func() {
		s.RunWorker(0)
		close(returned)
	}()

	select {
	case w := <-ran:
		if w != 0 {
			t.Errorf("job pinned to worker 0 ran on %d", w)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pinned job never ran on caller-driven worker")
	}

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("RunWorker did not return after Terminate")
	}
}

// TestSystem_TerminateIdempotent tests shutdown behavior
// Main test items:
// 1. Terminate and WaitForTermination can be called repeatedly
// 2. Scheduling after Terminate is a silent no-op
func TestSystem_TerminateIdempotent(t *testing.T) {
	s := NewSystem(SystemOptions{Workers: 2, Logger: NewNoOpLogger()})

	s.Terminate()
	s.Terminate()
	s.WaitForTermination()
	s.WaitForTermination()

	s.ScheduleFunc(context.Background(), func(ctx context.Context) {
		t.Error("job ran after Terminate")
	})
	time.Sleep(50 * time.Millisecond)
}

// TestSystem_ScheduleAfter tests delayed scheduling
// Main test items:
// 1. A delayed unit runs after roughly the requested delay
// 2. Pending delayed batches show up in Stats
func TestSystem_ScheduleAfter(t *testing.T) {
	s := newTestSystem(t, 2)

	ran := make(chan time.Time, 1)
	start := time.Now()
	s.ScheduleAfter(30*time.Millisecond, Fn(func(ctx context.Context) {
		ran <- time.Now()
	}))

	if d := s.Stats().Delayed; d != 1 {
		t.Errorf("expected 1 pending delayed batch, got %d", d)
	}

	select {
	case at := <-ran:
		if at.Sub(start) < 30*time.Millisecond {
			t.Errorf("delayed unit ran too early: %v", at.Sub(start))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed unit never ran")
	}
}

// TestSystem_Stats tests the counters snapshot
// Main test items:
// 1. Executed counts every completed slice
// 2. Workers reports the configured worker count
func TestSystem_Stats(t *testing.T) {
	s := newTestSystem(t, 3)

	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for range n {
		s.ScheduleFunc(context.Background(), func(ctx context.Context) { wg.Done() })
	}
	waitDone(t, &wg, 5*time.Second)

	stats := s.Stats()
	if stats.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", stats.Workers)
	}
	if stats.Executed < n {
		t.Errorf("expected at least %d executed, got %d", n, stats.Executed)
	}
}

// TestSystem_PanicHandler tests panic recovery in job bodies
// Main test items:
// 1. A panicking job does not kill its worker
// 2. The panic handler receives the panic value
// 3. Later jobs still run
func TestSystem_PanicHandler(t *testing.T) {
	handled := make(chan any, 1)
	s := NewSystem(SystemOptions{
		Workers:      2,
		Logger:       NewNoOpLogger(),
		PanicHandler: panicHandlerFunc(func(_ int32, _ Tags, info any, _ []byte) { handled <- info }),
	})
	t.Cleanup(func() {
		s.Terminate()
		s.WaitForTermination()
	})

	s.ScheduleFunc(context.Background(), func(ctx context.Context) {
		panic("boom")
	})

	select {
	case info := <-handled:
		if info != "boom" {
			t.Errorf("expected panic value %q, got %v", "boom", info)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("panic handler never invoked")
	}

	after := make(chan struct{})
	s.ScheduleFunc(context.Background(), func(ctx context.Context) { close(after) })
	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("system stopped executing after a panic")
	}
}

type panicHandlerFunc func(worker int32, tags Tags, panicInfo any, stackTrace []byte)

func (f panicHandlerFunc) HandlePanic(worker int32, tags Tags, panicInfo any, stackTrace []byte) {
	f(worker, tags, panicInfo, stackTrace)
}

func waitDone(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for jobs")
	}
}
