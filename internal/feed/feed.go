// File: internal/feed/feed.go
// Brief: Newest-first live event feed with fan-out to display and storage sinks.

// Package feed keeps the live event feed. Events are pushed from any
// goroutine and applied by a single Run loop, which renders each event once
// and prepends it; earlier entries are never reordered or changed.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/example/leakwatch/internal/metrics"
	"github.com/example/leakwatch/internal/model"
	"github.com/example/leakwatch/internal/render"
)

// ErrClosed is returned by Push once Run has exited.
var ErrClosed = errors.New("feed closed")

// Entry is one feed item: the event as received and its rendered fragment.
type Entry struct {
	Event    model.LiveEvent `json:"event"`
	Fragment render.Fragment `json:"fragment"`
}

// Sink receives every entry prepended while the feed runs.
type Sink interface {
	Prepend(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry Entry) error

func (f SinkFunc) Prepend(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// Config wires a Feed.
type Config struct {
	Render  render.Options
	Logger  logr.Logger
	Metrics *metrics.Metrics
	// Buffer is the Push queue depth (default 256).
	Buffer int
}

type Feed struct {
	opts    render.Options
	logger  logr.Logger
	metrics *metrics.Metrics

	queue chan model.LiveEvent
	done  chan struct{}
	once  sync.Once

	mu      sync.RWMutex
	entries []Entry // oldest first; Snapshot reverses
	sinks   []Sink
}

func New(cfg Config) *Feed {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Feed{
		opts:    cfg.Render,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		queue:   make(chan model.LiveEvent, cfg.Buffer),
		done:    make(chan struct{}),
	}
}

// AddSink registers a sink for entries prepended from now on.
func (f *Feed) AddSink(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Seed loads history, oldest first, without notifying sinks.
func (f *Feed) Seed(events []model.LiveEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		f.entries = append(f.entries, f.entry(ev))
	}
}

// Push queues an event. It blocks while the queue is full.
func (f *Feed) Push(ctx context.Context, ev model.LiveEvent) error {
	select {
	case <-f.done:
		return ErrClosed
	default:
	}
	select {
	case f.queue <- ev:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the feed newest first.
func (f *Feed) Snapshot() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries))
	for i, e := range f.entries {
		out[len(out)-1-i] = e
	}
	return out
}

// Len reports the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Run applies queued events until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	defer f.once.Do(func() { close(f.done) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.queue:
			f.apply(ctx, ev)
		}
	}
}

func (f *Feed) apply(ctx context.Context, ev model.LiveEvent) {
	entry := f.entry(ev)
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.Unlock()

	f.metrics.IncFeedEvent(entry.Fragment.Severity)
	f.logger.V(1).Info("live event", "id", entry.Event.ID, "type", entry.Event.EventType, "severity", entry.Fragment.Severity)
	for _, s := range sinks {
		if err := s.Prepend(ctx, entry); err != nil {
			f.logger.Error(err, "feed sink failed", "id", entry.Event.ID)
		}
	}
}

func (f *Feed) entry(ev model.LiveEvent) Entry {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return Entry{Event: ev, Fragment: render.Event(ev, f.opts)}
}
