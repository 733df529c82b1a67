// File: internal/dashboard/controller.go
// Brief: Scan lifecycle controller driving a display surface through Idle, Scanning, Results and Error.

// Package dashboard owns the scan lifecycle. A Controller serialises every
// state change on the goroutine running Run, so the current state, the
// animation task and the in-flight request are never touched concurrently.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/metrics"
	"github.com/example/leakwatch/internal/model"
	"github.com/example/leakwatch/internal/render"
)

// State is a lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateResults
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateResults:
		return "results"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Messages shown in the results view when a scan fails.
const (
	MessageUnreachable = "Unable to reach server."
	MessageTimeout     = "Scan timed out."
)

// ErrTimeout is the cancellation cause of a request that outlived RequestTimeout.
var ErrTimeout = errors.New("scan request timed out")

// Surface is the main display area plus the scan-again action.
type Surface interface {
	ShowScanning(render.View)
	ShowView(render.View)
	SetScanEnabled(bool)
}

// Fetcher retrieves the latest scan records.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.ScanRecord, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]model.ScanRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]model.ScanRecord, error) {
	return f(ctx)
}

// Policy holds the pacing knobs of a scan.
type Policy struct {
	// MinVisualDuration keeps the scanning screen up at least this long
	// before the request is issued.
	MinVisualDuration time.Duration
	// RequestTimeout bounds a single request; expiry ends the scan in Error.
	RequestTimeout time.Duration
	Frame          anim.Options
	Render         render.Options
}

// DefaultPolicy returns the stock pacing.
func DefaultPolicy() Policy {
	return Policy{
		MinVisualDuration: 3 * time.Second,
		RequestTimeout:    20 * time.Second,
	}
}

// Config wires a Controller. Canvas, Clock, Logger and Metrics are optional.
type Config struct {
	Surface Surface
	Canvas  anim.Canvas
	Fetcher Fetcher
	Policy  Policy
	Clock   clock.WithTicker
	Logger  logr.Logger
	Metrics *metrics.Metrics
}

type result struct {
	gen     uint64
	records []model.ScanRecord
	err     error
}

// Controller runs the scan lifecycle.
type Controller struct {
	surface Surface
	canvas  anim.Canvas
	fetcher Fetcher
	policy  Policy
	clock   clock.WithTicker
	logger  logr.Logger
	metrics *metrics.Metrics

	triggers chan struct{}
	results  chan result
	done     chan struct{}
	running  atomic.Bool

	state atomic.Int32
	gen   atomic.Uint64

	// Owned by the Run goroutine.
	task        *anim.Task
	cancelFetch context.CancelFunc
	scanStart   time.Time
}

// New validates cfg and returns an idle controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Surface == nil {
		return nil, errors.New("dashboard: surface is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("dashboard: fetcher is required")
	}
	def := DefaultPolicy()
	if cfg.Policy.MinVisualDuration < 0 {
		return nil, fmt.Errorf("dashboard: negative minimum visual duration %s", cfg.Policy.MinVisualDuration)
	}
	if cfg.Policy.RequestTimeout <= 0 {
		cfg.Policy.RequestTimeout = def.RequestTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Controller{
		surface:  cfg.Surface,
		canvas:   cfg.Canvas,
		fetcher:  cfg.Fetcher,
		policy:   cfg.Policy,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		triggers: make(chan struct{}, 64),
		results:  make(chan result, 1),
		done:     make(chan struct{}),
	}, nil
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Generation reports how many scans have been started.
func (c *Controller) Generation() uint64 {
	return c.gen.Load()
}

// StartScan queues a scan. It never blocks; a trigger that does not fit in
// the queue is dropped because a queued trigger already restarts the scan.
func (c *Controller) StartScan() {
	select {
	case c.triggers <- struct{}{}:
	default:
		c.logger.V(1).Info("scan trigger coalesced")
	}
}

// Run processes triggers, results and frame ticks until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("dashboard: controller already running")
	}
	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.triggers:
			c.begin(ctx)
		case res := <-c.results:
			c.complete(res)
		case now := <-c.task.C():
			if c.task.Frame(now) {
				c.metrics.IncFrames()
			}
		}
	}
}

func (c *Controller) begin(ctx context.Context) {
	c.stopTask()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	gen := c.gen.Add(1)
	c.state.Store(int32(StateScanning))
	c.scanStart = c.clock.Now()
	c.metrics.IncScansStarted()
	c.logger.Info("scan started", "generation", gen)

	c.surface.SetScanEnabled(false)
	c.surface.ShowScanning(render.ScanningView())
	if c.canvas != nil {
		c.task = anim.Start(c.clock, c.canvas, c.policy.Frame, c.logger.WithName("flicker"))
		c.metrics.IncFrames()
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel
	delay := c.clock.NewTimer(c.policy.MinVisualDuration)
	go c.fetch(fetchCtx, gen, delay)
}

func (c *Controller) fetch(ctx context.Context, gen uint64, delay clock.Timer) {
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C():
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	deadline := c.clock.NewTimer(c.policy.RequestTimeout)
	defer deadline.Stop()
	finished := make(chan struct{})
	go func() {
		select {
		case <-deadline.C():
			cancel(ErrTimeout)
		case <-finished:
		}
	}()

	records, err := c.fetcher.Fetch(reqCtx)
	close(finished)
	if errors.Is(context.Cause(reqCtx), ErrTimeout) {
		records, err = nil, ErrTimeout
	}

	select {
	case c.results <- result{gen: gen, records: records, err: err}:
	case <-c.done:
	}
}

func (c *Controller) complete(res result) {
	current := c.gen.Load()
	if res.gen != current {
		c.metrics.IncStaleResults()
		c.logger.V(1).Info("stale scan result discarded", "generation", res.gen, "current", current)
		return
	}
	c.stopTask()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	elapsed := c.clock.Since(c.scanStart)

	var view render.View
	if res.err != nil {
		msg := errorMessage(res.err)
		c.state.Store(int32(StateError))
		c.metrics.ObserveScan(metrics.OutcomeError, elapsed)
		c.logger.Error(res.err, "scan failed", "generation", res.gen, "message", msg)
		view = render.Results(nil, msg, c.policy.Render)
	} else {
		c.state.Store(int32(StateResults))
		c.metrics.ObserveScan(metrics.OutcomeResults, elapsed)
		c.logger.Info("scan finished", "generation", res.gen, "records", len(res.records), "elapsed", elapsed)
		view = render.Results(res.records, "", c.policy.Render)
	}
	c.surface.ShowView(view)
	c.surface.SetScanEnabled(true)
}

func (c *Controller) stopTask() {
	if c.task == nil {
		return
	}
	c.task.Cancel()
	c.task = nil
}

func (c *Controller) shutdown() {
	c.stopTask()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	close(c.done)
}

func errorMessage(err error) string {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return MessageTimeout
	}
	return MessageUnreachable
}
