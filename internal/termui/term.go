// File: internal/termui/term.go
// Brief: Terminal size detection and width-aware truncation.

package termui

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	maxWidth     = 160
)

type fdProvider interface {
	Fd() uintptr
}

// TerminalWidth reports the column count of w when it is a terminal.
func TerminalWidth(w io.Writer) (int, bool) {
	if v, ok := w.(fdProvider); ok {
		if cols, _, err := term.GetSize(int(v.Fd())); err == nil && cols > 0 {
			return cols, true
		}
	}
	return 0, false
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	if v, ok := w.(fdProvider); ok {
		return term.IsTerminal(int(v.Fd()))
	}
	return false
}

func widthOf(w io.Writer) int {
	cols, ok := TerminalWidth(w)
	if !ok {
		return defaultWidth
	}
	return min(cols, maxWidth)
}

// truncate shortens s to at most width display columns.
func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
