// Package jobsystem provides a work-stealing job scheduler with
// coroutine-style futures for Go.
//
// This library implements a fork-join execution model: fire-and-forget
// jobs form parent/child trees, a job finishes only when its whole
// subtree has finished, and continuations run after a subtree
// completes. Coroutine futures add typed results, awaiting, generators
// and worker pinning on top of the same completion protocol.
//
// # Quick Start
//
// Initialize the global system at application startup:
//
//	jobsystem.Init(jobsystem.DefaultConfig()) // workers = logical CPUs
//	defer jobsystem.Shutdown()
//
// Schedule work. Shutdown does not wait for queued jobs; jobs still
// queued when the workers exit are dropped, not run:
//
//	jobsystem.ScheduleFunc(context.Background(), func(ctx context.Context) {
//		// Runs on some worker. Submissions made with ctx become
//		// children of this job.
//	})
//
// # Key Concepts
//
// Unit: Anything schedulable. core.Fn wraps a plain callable; a
// core.Coro future is a Unit too, so callables and coroutines mix
// freely in one submission.
//
// Children: A job scheduled from inside a running job body (using the
// body's context) becomes its child; the parent finishes only after
// all children have finished. Use core.WithoutParent to opt out.
//
// Coroutines: core.NewCoro creates a typed future whose body can await
// other units, yield intermediate values and hop to a specific worker.
// The body only runs while a worker drives it, one slice at a time.
//
// # Main-thread frameworks
//
// Build the system with StartIndex 1 and drive worker 0 yourself:
//
//	cfg := jobsystem.DefaultConfig()
//	cfg.StartIndex = 1
//	jobsystem.Init(cfg)
//	go func() {
//		// submit work, then jobsystem.Terminate() when done
//	}()
//	jobsystem.RunWorker(0) // returns after Terminate
//
// # Example
//
//	import (
//		"context"
//		"fmt"
//
//		jobsystem "github.com/Swind/go-job-system"
//		"github.com/Swind/go-job-system/core"
//	)
//
//	func main() {
//		jobsystem.Init(jobsystem.DefaultConfig())
//		defer jobsystem.Shutdown()
//
//		sum := core.NewCoro(jobsystem.Instance(), func(cc *core.CoroCtx[int]) int {
//			a := core.NewCoro(jobsystem.Instance(), func(*core.CoroCtx[int]) int { return 1 })
//			b := core.NewCoro(jobsystem.Instance(), func(*core.CoroCtx[int]) int { return 2 })
//			defer a.Release()
//			defer b.Release()
//			cc.AwaitAll(a, b)
//			return a.Get() + b.Get()
//		})
//
//		jobsystem.ScheduleFunc(context.Background(), func(ctx context.Context) {
//			jobsystem.Schedule(ctx, sum)
//			jobsystem.Continuation(ctx, core.Fn(func(context.Context) {
//				fmt.Println("sum:", sum.Get())
//				sum.Release()
//				jobsystem.Terminate()
//			}))
//		})
//		jobsystem.WaitForTermination()
//	}
//
// For more details, see https://github.com/Swind/go-job-system
package jobsystem
