package jobsystem

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-job-system/core"
)

// =============================================================================
// Global Job System (Singleton)
// =============================================================================

var (
	globalSystem *core.System
	globalMu     sync.Mutex
)

// Options carries the pluggable collaborators for Init. All fields are
// optional; zero values fall back to the core defaults.
type Options struct {
	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler
	Allocator    core.Allocator
}

// Init builds and starts the global job system from the given config.
// Calling Init again while a system is running is a no-op.
func Init(cfg Config, opts ...Options) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSystem != nil {
		return // Already initialized
	}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	globalSystem = core.NewSystem(core.SystemOptions{
		Workers:       cfg.Workers,
		StartIndex:    cfg.StartIndex,
		SleepInterval: time.Duration(cfg.SleepInterval),
		Logger:        o.Logger,
		Metrics:       o.Metrics,
		PanicHandler:  o.PanicHandler,
		Allocator:     o.Allocator,
		TracePath:     cfg.Trace.Path,
	})
	if cfg.Trace.Enabled {
		globalSystem.Trace().Enable()
	}
}

// Instance returns the global job system.
// It panics if Init has not been called.
func Instance() *core.System {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSystem == nil {
		panic("job system not initialized. Call jobsystem.Init() first.")
	}
	return globalSystem
}

// Shutdown terminates the global system and waits for the workers to
// exit. Safe to call when Init never ran.
func Shutdown() {
	globalMu.Lock()
	sys := globalSystem
	globalSystem = nil
	globalMu.Unlock()

	if sys == nil {
		return
	}
	sys.Terminate()
	sys.WaitForTermination()
}

// =============================================================================
// Package-level forwarding helpers
// =============================================================================

// Schedule submits units to the global system. See core.System.Schedule.
func Schedule(ctx context.Context, units ...core.Unit) {
	Instance().Schedule(ctx, units...)
}

// ScheduleFunc submits a bare callable to the global system.
func ScheduleFunc(ctx context.Context, body func(ctx context.Context)) {
	Instance().ScheduleFunc(ctx, body)
}

// ScheduleAfter submits units to the global system after the delay.
func ScheduleAfter(delay time.Duration, units ...core.Unit) {
	Instance().ScheduleAfter(delay, units...)
}

// Continuation installs a continuation on the calling job. See
// core.System.Continuation.
func Continuation(ctx context.Context, u core.Unit) {
	Instance().Continuation(ctx, u)
}

// Terminate asks the global system's workers to exit.
func Terminate() {
	Instance().Terminate()
}

// WaitForTermination joins the global system's workers.
func WaitForTermination() {
	Instance().WaitForTermination()
}

// RunWorker drives worker idx of the global system on the calling
// goroutine. Used with Config.StartIndex 1 to keep worker 0 on the
// caller's thread.
func RunWorker(idx int32) {
	Instance().RunWorker(idx)
}
