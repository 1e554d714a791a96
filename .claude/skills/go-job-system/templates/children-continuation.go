// Package main demonstrates fan-out with children and a continuation
// A job's continuation runs once the job and all its children finished
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

	jobsystem.ScheduleFunc(context.Background(), func(ctx context.Context) {
		// Children: scheduled from inside a running job, they attach
		// to it automatically through the context
		for i := range 8 {
			jobsystem.ScheduleFunc(ctx, func(ctx context.Context) {
				fmt.Printf("child %d on worker %d\n", i, core.WorkerIndex(ctx))
			})
		}

		// Continuation: runs after this job AND all 8 children finish
		jobsystem.Continuation(ctx, core.Fn(func(ctx context.Context) {
			fmt.Println("all children done")
			jobsystem.Terminate()
		}))

		// To schedule an independent job instead of a child, detach
		// the parent link:
		jobsystem.ScheduleFunc(core.WithoutParent(ctx), func(ctx context.Context) {
			fmt.Println("orphan, not awaited by the continuation")
		})
	})

	jobsystem.WaitForTermination()
}
