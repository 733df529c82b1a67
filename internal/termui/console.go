// File: internal/termui/console.go
// Brief: Terminal display surface and flicker canvas for the scan lifecycle.

// Package termui renders the scan lifecycle and the live feed in a terminal.
// Console is the display surface and animation canvas used by the scan
// command; FeedPrinter streams feed entries as they arrive.
package termui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/render"
)

// shades maps opacity to glyph density, faintest first.
var shades = []rune(" ░▒▓█")

// cellUnits is the number of canvas units one character cell represents.
const cellUnits = 6

// ConsoleOptions configure a Console.
type ConsoleOptions struct {
	// Interactive repaints the flicker grid in place and offers the
	// scan-again prompt. It should only be set for terminals.
	Interactive bool
	// Width overrides terminal width detection.
	Width int
	// Rows is the flicker grid height in lines (default 6).
	Rows int
}

type Console struct {
	out  io.Writer
	opts ConsoleOptions

	mu         sync.Mutex
	frameLines int
	enabled    bool
}

func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	if opts.Width <= 0 {
		opts.Width = widthOf(out)
	}
	if opts.Rows <= 0 {
		opts.Rows = 6
	}
	return &Console{out: out, opts: opts}
}

// ShowScanning implements dashboard.Surface.
func (c *Console) ShowScanning(v render.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearFrameLocked()
	fmt.Fprintln(c.out, color.New(color.Bold).Sprint(v.Heading))
	if v.Hint != "" {
		fmt.Fprintln(c.out, color.New(color.FgHiBlack).Sprint(v.Hint))
	}
}

// ShowView implements dashboard.Surface.
func (c *Console) ShowView(v render.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearFrameLocked()
	fmt.Fprintln(c.out, color.New(color.Bold).Sprint(v.Heading))
	if v.Error != "" {
		fmt.Fprintln(c.out, color.New(color.FgRed).Sprint(v.Error))
	}
	if v.Empty != "" {
		fmt.Fprintln(c.out, v.Empty)
	}
	for _, f := range v.Fragments {
		for _, line := range fragmentLines(f, c.opts.Width) {
			fmt.Fprintln(c.out, line)
		}
	}
	if len(v.Fragments) > 0 {
		fmt.Fprintln(c.out, summary(v))
	}
}

// SetScanEnabled implements dashboard.Surface.
func (c *Console) SetScanEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if enabled && c.opts.Interactive {
		fmt.Fprintln(c.out, color.New(color.FgCyan).Sprint("Press Enter to scan again, q to quit."))
	}
}

// ScanEnabled reports whether the scan-again prompt is showing.
func (c *Console) ScanEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Size implements anim.Canvas in canvas units.
func (c *Console) Size() (int, int) {
	return c.opts.Width * cellUnits, c.opts.Rows * cellUnits
}

// Draw implements anim.Canvas. Non-interactive consoles skip frames.
func (c *Console) Draw(f anim.Frame) error {
	if !c.opts.Interactive {
		return nil
	}
	lines := frameText(f, c.opts.Width, c.opts.Rows)
	paint := color.RGB(int(f.Colour[0]), int(f.Colour[1]), int(f.Colour[2]))

	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	if c.frameLines > 0 {
		fmt.Fprintf(&b, "\x1b[%dF", c.frameLines)
	}
	for _, line := range lines {
		b.WriteString(paint.Sprint(line))
		b.WriteString("\x1b[K\n")
	}
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return err
	}
	c.frameLines = len(lines)
	return nil
}

func (c *Console) clearFrameLocked() {
	if c.frameLines == 0 {
		return
	}
	fmt.Fprintf(c.out, "\x1b[%dF\x1b[J", c.frameLines)
	c.frameLines = 0
}

// frameText maps each cell onto one character, picking a denser glyph for
// higher opacity.
func frameText(f anim.Frame, cols, rows int) []string {
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}
	gap := max(f.Gap, 1)
	for _, cell := range f.Cells {
		x, y := cell.X/gap, cell.Y/gap
		if x < 0 || y < 0 || x >= cols || y >= rows {
			continue
		}
		idx := int(math.Round(cell.Alpha * float64(len(shades)-1)))
		idx = max(0, min(idx, len(shades)-1))
		grid[y][x] = shades[idx]
	}
	out := make([]string, rows)
	for i, row := range grid {
		out[i] = string(row)
	}
	return out
}

func summary(v render.View) string {
	counts := v.Counts()
	parts := make([]string, 0, len(counts))
	for _, sev := range severityOrder {
		if n := counts[sev]; n > 0 {
			parts = append(parts, severityPainter(sev).Sprintf("%d %s", n, sev))
		}
	}
	return fmt.Sprintf("%d records: %s", len(v.Fragments), strings.Join(parts, ", "))
}
