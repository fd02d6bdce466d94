// Package orchestrator is the control plane tying every other component
// together: it owns the per-service ServiceRuntime table, fires one tick
// per service on its own cadence with a randomized startup spread, hands
// jobs to the worker pool, and on each Result updates runtime state,
// appends history, records metrics, and triggers a debounced snapshot
// rewrite.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/healthwatch/healthwatch/internal/classify"
	"github.com/healthwatch/healthwatch/internal/history"
	"github.com/healthwatch/healthwatch/internal/metrics"
	"github.com/healthwatch/healthwatch/internal/model"
	"github.com/healthwatch/healthwatch/internal/retry"
	"github.com/healthwatch/healthwatch/internal/runtime"
	"github.com/healthwatch/healthwatch/internal/snapshot"
	"github.com/healthwatch/healthwatch/internal/workerpool"
	"github.com/healthwatch/healthwatch/pkg/config"
	"github.com/healthwatch/healthwatch/pkg/logger"
	"github.com/healthwatch/healthwatch/pkg/telemetry"
)

const (
	// defaultShutdownGrace bounds how long Run waits for in-flight probes
	// to finish draining once cancellation is observed.
	defaultShutdownGrace = 10 * time.Second

	// defaultSnapshotDebounce coalesces a burst of Results arriving within
	// this window into a single snapshot rewrite.
	defaultSnapshotDebounce = 250 * time.Millisecond

	// maxInitialSpreadWindow bounds the randomized startup spread applied
	// to each service's first tick, regardless of its configured interval.
	maxInitialSpreadWindow = 5 * time.Second
)

// Options configures non-spec-mandated Orchestrator knobs; zero values
// select the defaults above.
type Options struct {
	SkipGuard        bool
	ShutdownGrace    time.Duration
	SnapshotDebounce time.Duration
}

// Orchestrator is the Scheduler/Orchestrator component of §4.7: logically
// single-owner for the ServiceRuntime table, with workers communicating
// Results back over a channel rather than mutating state directly.
type Orchestrator struct {
	cfg          *config.Config
	table        *runtime.Table
	pool         *workerpool.Pool
	retry        *retry.Controller
	history      *history.Writer
	metrics      *metrics.Metrics
	snapshotPath string
	defsByName   map[string]model.ServiceDefinition

	skipGuard        bool
	shutdownGrace    time.Duration
	snapshotDebounce time.Duration

	results chan model.HealthCheckResult
	dirty   chan struct{}
	// inFlight enforces at-most-one-probe-per-service (§5): a tick for a
	// service already running is dropped rather than queued.
	inFlight sync.Map
}

// New constructs an Orchestrator over an already-validated configuration.
// The caller supplies the collaborators it owns the lifecycle of (history
// writer, metrics registry) so Orchestrator never decides where the
// history file or metrics endpoint live.
func New(cfg *config.Config, table *runtime.Table, controller *retry.Controller, hist *history.Writer, m *metrics.Metrics, snapshotPath string, opts Options) *Orchestrator {
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	debounce := opts.SnapshotDebounce
	if debounce <= 0 {
		debounce = defaultSnapshotDebounce
	}

	defs := make(map[string]model.ServiceDefinition, len(cfg.Pings))
	for _, svc := range cfg.Pings {
		defs[svc.Name] = svc
	}

	return &Orchestrator{
		cfg:          cfg,
		table:        table,
		pool:         workerpool.New(cfg.Settings.WorkerPoolSize),
		retry:        controller,
		history:      hist,
		metrics:      m,
		snapshotPath: snapshotPath,
		defsByName:   defs,

		skipGuard:        opts.SkipGuard,
		shutdownGrace:    grace,
		snapshotDebounce: debounce,

		results: make(chan model.HealthCheckResult, len(cfg.Pings)+1),
		dirty:   make(chan struct{}, 1),
	}
}

// Run starts generating ticks and blocks until ctx is cancelled. On
// cancellation it stops ticking, waits for the worker pool to drain,
// flushes the history file, writes a final snapshot, and returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.metrics.WorkerPoolSize.Set(float64(o.pool.Len()))

	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		for res := range o.results {
			o.handleResult(res)
		}
	}()

	snapshotDone := make(chan struct{})
	snapshotCtx, cancelSnapshot := context.WithCancel(context.Background())
	go o.snapshotLoop(snapshotCtx, snapshotDone)

	var tickers sync.WaitGroup
	for _, svc := range o.cfg.Pings {
		tickers.Add(1)
		go func(svc model.ServiceDefinition) {
			defer tickers.Done()
			o.runTicker(ctx, svc)
		}(svc)
	}

	<-ctx.Done()
	logger.Info("orchestrator shutting down", "module", "orchestrator")

	tickers.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), o.shutdownGrace)
	if err := o.pool.Drain(drainCtx); err != nil {
		logger.Warn("worker pool did not drain within grace period", "error", err)
	}
	drainCancel()

	close(o.results)
	<-resultsDone

	cancelSnapshot()
	<-snapshotDone

	if err := o.history.Close(); err != nil {
		logger.Error("failed to close history writer", "error", err)
	}

	return o.writeSnapshot()
}

// runTicker owns one service's tick cadence: a randomized startup spread
// followed by a steady ticker at the service's effective interval.
func (o *Orchestrator) runTicker(ctx context.Context, svc model.ServiceDefinition) {
	interval := svc.EffectiveInterval(o.cfg.Settings.CheckInterval)

	select {
	case <-time.After(initialSpread(interval)):
	case <-ctx.Done():
		return
	}

	o.fire(ctx, svc)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.fire(ctx, svc)
		case <-ctx.Done():
			return
		}
	}
}

// fire submits one job for svc, dropping the tick if a prior probe for
// the same service has not yet completed (at-most-one-in-flight).
func (o *Orchestrator) fire(ctx context.Context, svc model.ServiceDefinition) {
	if _, alreadyRunning := o.inFlight.LoadOrStore(svc.Name, struct{}{}); alreadyRunning {
		logger.Debug("skipping tick; probe already in flight", "module", "orchestrator", "service", svc.Name)
		return
	}

	err := o.pool.Submit(ctx, func(ctx context.Context) {
		defer o.inFlight.Delete(svc.Name)
		o.probeOnce(ctx, svc)
	})
	if err != nil {
		o.inFlight.Delete(svc.Name)
	}
}

// probeOnce runs the retry-wrapped probe for svc and forwards the final
// result to the result-receive loop, recording transport-error metrics
// for every attempt along the way. The whole cycle — every retried
// attempt included — is wrapped in a single span and its wall time is
// the healthwatch_orchestrator_tick_duration_seconds observation.
func (o *Orchestrator) probeOnce(ctx context.Context, svc model.ServiceDefinition) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "orchestrator.tick", telemetry.WithAttributes(
		attribute.String("healthwatch.service_name", svc.Name),
	))
	defer span.End()

	correlationID := ""
	result := o.retry.Run(ctx, svc, o.cfg.Settings, o.cfg.Settings.MaxRetries, o.skipGuard, func(attempt int, r model.HealthCheckResult) {
		if r.HTTPStatusCode == 0 {
			o.metrics.RecordError(svc.Name, string(classify.FromReason(r.FailureReason)))
		}
		if attempt > 0 {
			telemetry.AddEvent(ctx, "probe.retry", attribute.Int("attempt", attempt))
			logger.WithCorrelationID(r.CorrelationID).Debug("retrying probe",
				"module", "orchestrator", "service", svc.Name, "attempt", attempt)
		}
		correlationID = r.CorrelationID
	})

	tick := time.Since(start)
	o.metrics.RecordTick(tick)
	span.SetAttributes(
		attribute.String("healthwatch.status", string(result.Status)),
		attribute.Int64("healthwatch.tick_ms", tick.Milliseconds()),
	)

	o.metrics.RecordWorkerTaskCompleted()
	logger.WithCorrelationID(correlationID).Info("probe completed",
		"module", "orchestrator", "service", svc.Name, "status", string(result.Status),
		"latency_ms", result.LatencyMs)

	// Always deliver: the result-receive loop keeps draining o.results
	// until Run explicitly closes it post-drain, so a cancelled ctx here
	// (mid-shutdown) must not cause a completed probe to be dropped.
	o.results <- result
}

// handleResult is the single owner-side handler for a completed probe: it
// updates ServiceRuntime, appends history, records metrics, and marks the
// snapshot dirty. It is only ever called from the Run goroutine draining
// o.results, so it never races with itself.
func (o *Orchestrator) handleResult(res model.HealthCheckResult) {
	o.table.Apply(res.ServiceName, func(r *model.ServiceRuntime) {
		t := res.Timestamp
		if r.CurrentStatus != res.Status {
			r.LastStatusChangeTime = &t
		}
		r.CurrentStatus = res.Status

		r.LastCheckTime = &t

		lat := res.LatencyMs
		r.LastLatencyMs = &lat

		hs := res.HTTPStatusCode
		r.LastHTTPStatus = &hs

		r.LastFailureReason = res.FailureReason

		if res.Status == model.StatusFail {
			r.ConsecutiveFailures++
		} else {
			r.ConsecutiveFailures = 0
		}
	})

	if err := o.history.Append(res); err != nil {
		logger.Error("failed to append history record", "module", "orchestrator", "error", err, "service", res.ServiceName)
		o.metrics.RecordCSVWrite(false, 0)
	} else {
		o.metrics.RecordCSVWrite(true, 1)
	}

	o.metrics.RecordProbe(res.ServiceName, string(res.Status), time.Duration(res.LatencyMs)*time.Millisecond)
	o.metrics.SetServicesFailing(o.table.FailingCount())

	o.markDirty()
}

// markDirty signals the debounced snapshot writer without blocking; a
// pending signal already queued is sufficient, so extras are dropped.
func (o *Orchestrator) markDirty() {
	select {
	case o.dirty <- struct{}{}:
	default:
	}
}

// snapshotLoop coalesces bursts of dirty signals into a single write: the
// first signal after an idle period arms a debounce timer, and any
// further signals before it fires are absorbed for free.
func (o *Orchestrator) snapshotLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-o.dirty:
			if !armed {
				armed = true
				timer.Reset(o.snapshotDebounce)
			}
		case <-timer.C:
			armed = false
			if err := o.writeSnapshot(); err != nil {
				logger.Error("failed to write snapshot", "module", "orchestrator", "error", err)
			}
		case <-ctx.Done():
			if armed {
				if err := o.writeSnapshot(); err != nil {
					logger.Error("failed to write final debounced snapshot", "module", "orchestrator", "error", err)
				}
			}
			return
		}
	}
}

// writeSnapshot projects the current runtime table against the static
// service definitions and publishes it atomically.
func (o *Orchestrator) writeSnapshot() error {
	rows := o.table.Snapshot()
	entries := make([]snapshot.Entry, len(rows))
	for i, row := range rows {
		entries[i] = snapshot.Entry{Definition: o.defsByName[row.Name], Runtime: row.Runtime}
	}
	return snapshot.Write(o.snapshotPath, entries)
}

// initialSpread returns a randomized startup delay for a service's first
// tick, so a large catalogue doesn't stampede every endpoint at once. The
// window is a quarter of the service's interval, capped at 5s.
func initialSpread(interval time.Duration) time.Duration {
	window := interval / 4
	if window > maxInitialSpreadWindow {
		window = maxInitialSpreadWindow
	}
	if window <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(window)))
}
