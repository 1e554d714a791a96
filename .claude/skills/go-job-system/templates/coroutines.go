// Package main demonstrates coroutine futures with typed results
// Coroutines suspend on Await without blocking their worker
package main

import (
	"context"
	"fmt"

	jobsystem "github.com/Swind/go-job-system"
	"github.com/Swind/go-job-system/core"
)

func main() {
	cfg := jobsystem.DefaultConfig()
	cfg.Workers = 4
	jobsystem.Init(cfg)

	sys := jobsystem.Instance()

	// A coroutine that awaits two child coroutines and combines them
	sum := core.NewCoro(sys, func(cc *core.CoroCtx[int]) int {
		a := core.NewCoro(sys, func(cc *core.CoroCtx[int]) int { return 20 })
		b := core.NewCoro(sys, func(cc *core.CoroCtx[int]) int { return 22 })
		defer a.Release()
		defer b.Release()

		// Suspends until both children finalized; the worker keeps
		// running other jobs meanwhile
		cc.AwaitAll(core.Gather(a, b)...)

		return a.Get() + b.Get()
	})

	done := make(chan struct{})
	driver := core.Fn(func(ctx context.Context) {
		sys.Continuation(ctx, core.Fn(func(ctx context.Context) {
			close(done)
		}))
		sys.Schedule(ctx, sum)
	})
	sys.Schedule(context.Background(), driver)

	<-done
	if sum.Err() != nil {
		fmt.Println("coroutine failed:", sum.Err())
	} else {
		fmt.Println("result:", sum.Get()) // 42
	}
	sum.Release()

	jobsystem.Shutdown()
}
