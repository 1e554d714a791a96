// Package main demonstrates execution tracing and Prometheus metrics
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobsystem "github.com/Swind/go-job-system"
	"github.com/Swind/go-job-system/core"
	jsprom "github.com/Swind/go-job-system/observability/prometheus"
)

const typeRender = 1

func main() {
	// Prometheus exporter feeds per-job counters and histograms
	reg := prom.NewRegistry()
	exporter, err := jsprom.NewMetricsExporter("jobsystem", reg, jsprom.ExporterOptions{})
	if err != nil {
		panic(err)
	}

	cfg := jobsystem.DefaultConfig()
	cfg.Workers = 4
	cfg.Trace.Enabled = true // Chrome tracing JSON, written on shutdown
	cfg.Trace.Path = "trace.json"
	jobsystem.Init(cfg, jobsystem.Options{Metrics: exporter})

	// Names shown for tagged jobs in the trace viewer
	jobsystem.Instance().Trace().SetTypeName(typeRender, "render")

	go http.ListenAndServe(":2112", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	for i := range 16 {
		u := core.Fn(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
		}).With(core.AnyWorker, typeRender, int32(i))
		jobsystem.Schedule(context.Background(), u)
	}

	time.Sleep(100 * time.Millisecond)
	jobsystem.Shutdown()
	fmt.Println("open chrome://tracing and load trace.json")
}
