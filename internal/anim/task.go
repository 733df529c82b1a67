// File: internal/anim/task.go
// Brief: Cancellable frame task that repaints a Canvas while a scan is pending.

package anim

import (
	"math/rand/v2"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// Canvas is the bounded drawing surface a Task paints.
type Canvas interface {
	// Size reports the current surface size; a change rebuilds the grid.
	Size() (width, height int)
	// Draw repaints the full surface.
	Draw(Frame) error
}

// Options configure a Task.
type Options struct {
	// Interval between frames (default 50ms).
	Interval time.Duration
	// Gap between cell origins in canvas units (default 6).
	Gap int
	// Seed makes the cell layout reproducible; 0 picks a random seed.
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 50 * time.Millisecond
	}
	if o.Gap <= 0 {
		o.Gap = 6
	}
	return o
}

// Task is a running flicker animation. It is not safe for concurrent use:
// its owner receives ticks from C and calls Frame on the same goroutine that
// calls Cancel.
type Task struct {
	canvas  Canvas
	opts    Options
	rng     *rand.Rand
	logger  logr.Logger
	ticker  clock.Ticker
	start   time.Time
	grid    *Grid
	seq     uint64
	stopped bool
}

// Start begins a task; the first frame is drawn immediately.
func Start(clk clock.WithTicker, canvas Canvas, opts Options, logger logr.Logger) *Task {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	t := &Task{
		canvas: canvas,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger: logger,
		ticker: clk.NewTicker(opts.Interval),
		start:  clk.Now(),
	}
	t.Frame(t.start)
	return t
}

// C delivers frame ticks; it is nil once the task is cancelled so a select
// on it blocks forever instead of firing a stale frame.
func (t *Task) C() <-chan time.Time {
	if t == nil || t.stopped {
		return nil
	}
	return t.ticker.C()
}

// Running reports whether the task still schedules frames.
func (t *Task) Running() bool {
	return t != nil && !t.stopped
}

// Frames returns how many frames have been drawn.
func (t *Task) Frames() uint64 {
	if t == nil {
		return 0
	}
	return t.seq
}

// Frame draws one frame for the given instant. It does nothing after Cancel.
func (t *Task) Frame(now time.Time) bool {
	if t == nil || t.stopped || t.canvas == nil {
		return false
	}
	w, h := t.canvas.Size()
	if t.grid == nil || t.grid.Width != w || t.grid.Height != h {
		t.grid = NewGrid(w, h, t.opts.Gap, t.rng)
		t.logger.V(1).Info("flicker grid rebuilt", "width", w, "height", h, "cells", len(t.grid.Cells))
	}
	t.seq++
	elapsed := float64(now.Sub(t.start)) / float64(time.Millisecond)
	if err := t.canvas.Draw(t.grid.frame(t.seq, elapsed)); err != nil {
		t.logger.V(1).Info("flicker frame dropped", "err", err)
	}
	return true
}

// Cancel stops frame scheduling. It is idempotent.
func (t *Task) Cancel() {
	if t == nil || t.stopped {
		return
	}
	t.stopped = true
	t.ticker.Stop()
}
