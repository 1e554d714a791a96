// Package main demonstrates basic go-job-system setup with the global system
package main

import (
	"context"
	"fmt"
	"time"

	jobsystem "github.com/Swind/go-job-system"
	"github.com/Swind/go-job-system/core"
)

func main() {
	// Step 1: Initialize the global job system
	// Workers 0 means one worker goroutine per logical CPU
	cfg := jobsystem.DefaultConfig()
	cfg.Workers = 4
	jobsystem.Init(cfg)
	defer jobsystem.Shutdown()

	// Step 2: Submit work
	fmt.Println("Scheduling jobs...")

	// Bare callable
	jobsystem.ScheduleFunc(context.Background(), func(ctx context.Context) {
		fmt.Println("Job 1 executed")
	})

	// Delayed unit
	jobsystem.ScheduleAfter(100*time.Millisecond, core.Fn(func(ctx context.Context) {
		fmt.Println("Job 2 executed after 100ms delay")
	}))

	// Job with context access
	jobsystem.ScheduleFunc(context.Background(), func(ctx context.Context) {
		// The worker index is carried in the context
		fmt.Printf("Job 3 executing on worker %d\n", core.WorkerIndex(ctx))
	})

	// Wait for jobs to complete
	time.Sleep(200 * time.Millisecond)
	fmt.Println("All jobs completed")
}
