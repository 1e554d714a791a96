// Package main demonstrates driving worker 0 on the main goroutine
// Useful for frameworks that require certain calls from the main thread
package main

import (
	"context"
	"fmt"
	"time"

	jobsystem "github.com/Swind/go-job-system"
	"github.com/Swind/go-job-system/core"
)

func main() {
	// StartIndex 1 means the system spawns workers 1..N-1 itself and
	// leaves worker 0 to be driven by the caller
	cfg := jobsystem.DefaultConfig()
	cfg.Workers = 4
	cfg.StartIndex = 1
	jobsystem.Init(cfg)

	sys := jobsystem.Instance()

	render := core.NewCoro(sys, func(cc *core.CoroCtx[int]) int {
		// Hop onto worker 0, the main goroutine
		cc.YieldTo(0)
		fmt.Println("main-thread section on worker", core.WorkerIndex(cc.Context()))

		// Hop back to any background worker for heavy work
		cc.YieldTo(2)
		fmt.Println("background section on worker", core.WorkerIndex(cc.Context()))
		return 0
	})
	jobsystem.Schedule(context.Background(), render)

	go func() {
		for !render.Ready() {
			time.Sleep(time.Millisecond)
		}
		render.Release()
		jobsystem.Terminate()
	}()

	// Blocks until Terminate; runs worker 0's loop on this goroutine
	jobsystem.RunWorker(0)
	jobsystem.WaitForTermination()
}
