package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-chronos/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// TimerSnapshotProvider provides the current stats of one timer.
type TimerSnapshotProvider interface {
	Stats() core.TimerStats
}

// RegistrySnapshotProvider provides the current stats of a set of timers.
// *core.Registry satisfies it.
type RegistrySnapshotProvider interface {
	Stats() []core.TimerStats
}

// QueueSnapshotProvider provides the current stats of a SerialQueue.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

type timerSeries struct {
	name string
	kind string
}

// SnapshotPoller periodically exports timer and queue Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	providersMu sync.RWMutex
	timers      map[string]TimerSnapshotProvider
	registries  map[string]RegistrySnapshotProvider
	queues      map[string]QueueSnapshotProvider

	timerRunning     *prom.GaugeVec
	timerExecuting   *prom.GaugeVec
	timerValid       *prom.GaugeVec
	timerInvocations *prom.GaugeVec
	timerOverruns    *prom.GaugeVec

	queuePending  *prom.GaugeVec
	queueExecuted *prom.GaugeVec
	queueClosed   *prom.GaugeVec

	// exported holds the timer series set by the last collection, so series
	// of timers that disappeared can be deleted. Guarded by providersMu.
	exported map[timerSeries]struct{}

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

	timerLabels := []string{"timer", "kind"}
	timerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "timer_running",
		Help:      "Timer scheduling state (1=started, 0=paused).",
	}, timerLabels)
	timerExecuting := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "timer_executing",
		Help:      "Whether a callback invocation is in progress (1=yes, 0=no).",
	}, timerLabels)
	timerValid := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "timer_valid",
		Help:      "Timer validity (1=valid, 0=cancelled).",
	}, timerLabels)
	timerInvocations := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "timer_invocations",
		Help:      "Completed invocation count snapshot.",
	}, timerLabels)
	timerOverruns := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "timer_overruns",
		Help:      "Dropped fire count snapshot.",
	}, timerLabels)

	queuePending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "queue_pending",
		Help:      "Tasks waiting in the queue.",
	}, []string{"queue"})
	queueExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "queue_executed",
		Help:      "Executed task count snapshot.",
	}, []string{"queue"})
	queueClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "chronos",
		Name:      "queue_closed",
		Help:      "Queue closed state (1=closed, 0=open).",
	}, []string{"queue"})

	var err error
	for _, g := range []**prom.GaugeVec{
		&timerRunning, &timerExecuting, &timerValid, &timerInvocations, &timerOverruns,
		&queuePending, &queueExecuted, &queueClosed,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:         interval,
		timers:           make(map[string]TimerSnapshotProvider),
		registries:       make(map[string]RegistrySnapshotProvider),
		queues:           make(map[string]QueueSnapshotProvider),
		timerRunning:     timerRunning,
		timerExecuting:   timerExecuting,
		timerValid:       timerValid,
		timerInvocations: timerInvocations,
		timerOverruns:    timerOverruns,
		queuePending:     queuePending,
		queueExecuted:    queueExecuted,
		queueClosed:      queueClosed,
		exported:         make(map[timerSeries]struct{}),
	}, nil
}

// AddTimer adds or replaces a timer snapshot provider by name.
func (p *SnapshotPoller) AddTimer(name string, provider TimerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "timer")
	p.providersMu.Lock()
	p.timers[name] = provider
	p.providersMu.Unlock()
}

// AddRegistry adds or replaces a provider whose timers are exported under
// their own names.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "registry")
	p.providersMu.Lock()
	p.registries[name] = provider
	p.providersMu.Unlock()
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.providersMu.Lock()
	p.queues[name] = provider
	p.providersMu.Unlock()
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

	go p.loop(pollCtx, p.done)
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

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

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
	p.providersMu.Lock()
	defer p.providersMu.Unlock()

	current := make(map[timerSeries]struct{}, len(p.exported))
	for name, provider := range p.timers {
		current[p.setTimer(name, provider.Stats())] = struct{}{}
	}
	for _, provider := range p.registries {
		for _, stats := range provider.Stats() {
			current[p.setTimer(normalizeLabel(stats.Name, "timer"), stats)] = struct{}{}
		}
	}
	for series := range p.exported {
		if _, ok := current[series]; !ok {
			p.deleteTimer(series)
		}
	}
	p.exported = current

	for name, provider := range p.queues {
		stats := provider.Stats()
		p.queuePending.WithLabelValues(name).Set(float64(stats.Pending))
		p.queueExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.queueClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
}

func (p *SnapshotPoller) setTimer(name string, stats core.TimerStats) timerSeries {
	kind := normalizeLabel(stats.Kind, "unknown")
	p.timerRunning.WithLabelValues(name, kind).Set(boolGauge(stats.Running))
	p.timerExecuting.WithLabelValues(name, kind).Set(boolGauge(stats.Executing))
	p.timerValid.WithLabelValues(name, kind).Set(boolGauge(stats.Valid))
	p.timerInvocations.WithLabelValues(name, kind).Set(float64(stats.Invocations))
	p.timerOverruns.WithLabelValues(name, kind).Set(float64(stats.Overruns))
	return timerSeries{name: name, kind: kind}
}

// deleteTimer drops the series of a timer no provider reports any more.
func (p *SnapshotPoller) deleteTimer(series timerSeries) {
	for _, g := range []*prom.GaugeVec{
		p.timerRunning, p.timerExecuting, p.timerValid, p.timerInvocations, p.timerOverruns,
	} {
		g.DeleteLabelValues(series.name, series.kind)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
