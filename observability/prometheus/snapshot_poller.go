package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-job-system/core"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
// *core.System satisfies it.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into
// Prometheus gauges. Counters that the hot path already tracks
// (executed, stolen) are exported as gauges of the snapshot values, so
// systems running without a MetricsExporter still get coarse numbers.
type SnapshotPoller struct {
	interval time.Duration

	systemsMu sync.RWMutex
	systems   map[string]SchedulerSnapshotProvider

	workers  *prom.GaugeVec
	executed *prom.GaugeVec
	stolen   *prom.GaugeVec
	delayed  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	workers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobsystem",
		Name:      "workers",
		Help:      "Worker count per system.",
	}, []string{"system"})
	executed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobsystem",
		Name:      "executed_snapshot_total",
		Help:      "Executed job slice count snapshot per system.",
	}, []string{"system"})
	stolen := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobsystem",
		Name:      "stolen_snapshot_total",
		Help:      "Stolen job count snapshot per system.",
	}, []string{"system"})
	delayed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "jobsystem",
		Name:      "delayed_pending",
		Help:      "Delayed batches not yet due per system.",
	}, []string{"system"})

	var err error
	if workers, err = registerCollector(reg, workers); err != nil {
		return nil, err
	}
	if executed, err = registerCollector(reg, executed); err != nil {
		return nil, err
	}
	if stolen, err = registerCollector(reg, stolen); err != nil {
		return nil, err
	}
	if delayed, err = registerCollector(reg, delayed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval: interval,
		systems:  make(map[string]SchedulerSnapshotProvider),
		workers:  workers,
		executed: executed,
		stolen:   stolen,
		delayed:  delayed,
	}, nil
}

// AddSystem adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddSystem(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	if name == "" {
		name = "system"
	}
	p.systemsMu.Lock()
	p.systems[name] = provider
	p.systemsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.systemsMu.RLock()
	for name, provider := range p.systems {
		stats := provider.Stats()
		p.workers.WithLabelValues(name).Set(float64(stats.Workers))
		p.executed.WithLabelValues(name).Set(float64(stats.Executed))
		p.stolen.WithLabelValues(name).Set(float64(stats.Stolen))
		p.delayed.WithLabelValues(name).Set(float64(stats.Delayed))
	}
	p.systemsMu.RUnlock()
}
