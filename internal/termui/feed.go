// File: internal/termui/feed.go
// Brief: Streams live feed entries to a terminal as they are prepended.

package termui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/example/leakwatch/internal/feed"
)

// FeedPrinter implements feed.Sink. A terminal cannot prepend, so the
// newest entry is always printed last.
type FeedPrinter struct {
	out   io.Writer
	width int

	mu      sync.Mutex
	printed int
}

func NewFeedPrinter(out io.Writer, width int) *FeedPrinter {
	if width <= 0 {
		width = widthOf(out)
	}
	return &FeedPrinter{out: out, width: width}
}

// Prepend implements feed.Sink.
func (p *FeedPrinter) Prepend(_ context.Context, e feed.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range fragmentLines(e.Fragment, p.width) {
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	p.printed++
	return nil
}

// PrintHistory prints seeded entries oldest first.
func (p *FeedPrinter) PrintHistory(entries []feed.Entry) error {
	for i := len(entries) - 1; i >= 0; i-- {
		if err := p.Prepend(context.Background(), entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Printed reports how many entries have been written.
func (p *FeedPrinter) Printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}
