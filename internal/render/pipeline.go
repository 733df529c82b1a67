// File: internal/render/pipeline.go
// Brief: Record-to-fragment rendering for scan results and live events.

package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/example/leakwatch/internal/classify"
	"github.com/example/leakwatch/internal/model"
)

// TimestampLayout is how every resolved timestamp is displayed.
const TimestampLayout = "2006-01-02 15:04:05"

// Options tune rendering. The zero value renders timestamps in time.Local.
type Options struct {
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// FormatTimestamp renders a timestamp in the display layout. Epoch values
// below model.MillisThreshold are seconds, the rest milliseconds. Text that
// cannot be parsed is shown as sent; an absent timestamp renders empty.
func FormatTimestamp(ts model.Timestamp, opts Options) string {
	if when, ok := ts.Time(); ok {
		return when.In(opts.location()).Format(TimestampLayout)
	}
	if n, err := strconv.ParseFloat(ts.Raw(), 64); err == nil && n <= 0 {
		return ""
	}
	return ts.Raw()
}

// ScanRecord renders a single scan result.
func ScanRecord(r model.ScanRecord, opts Options) Fragment {
	sev := classify.Record(r)
	frag := Fragment{
		Kind:      KindScan,
		Severity:  sev,
		Timestamp: FormatTimestamp(r.Timestamp, opts),
	}
	switch r.Shape() {
	case model.ShapeDevice:
		frag.Title = r.Name
		if strings.TrimSpace(frag.Title) == "" {
			frag.Title = "Unknown device"
		}
		if r.Manufacturer != "" {
			frag.Lines = append(frag.Lines, r.Manufacturer)
		}
		if r.Destination != "" {
			frag.Lines = append(frag.Lines, "→ "+r.Destination)
		}
		frag.Badge = r.Status
		if frag.Badge == "" {
			frag.Badge = r.Verdict
		}
	default:
		frag.Title = connectionTitle(r)
		if r.LocalAddr != "" || r.RemoteAddr != "" {
			frag.Lines = append(frag.Lines, r.LocalAddr+" → "+r.RemoteAddr)
		}
		frag.Badge = r.Verdict
	}
	if frag.Badge == "" {
		frag.Badge = sev.String()
	}
	return frag
}

func connectionTitle(r model.ScanRecord) string {
	pid := "?"
	if r.PID != nil {
		pid = strconv.FormatInt(*r.PID, 10)
	}
	if name := strings.TrimSpace(r.ProcessName); name != "" {
		return fmt.Sprintf("%s (pid %s)", name, pid)
	}
	return "pid " + pid
}

// Event renders a single live event.
func Event(e model.LiveEvent, opts Options) Fragment {
	sev := classify.Event(e)
	frag := Fragment{
		ID:        e.ID,
		Kind:      KindEvent,
		Severity:  sev,
		Initial:   initial(e.EventType),
		Title:     strings.TrimSpace(e.EventType),
		Timestamp: FormatTimestamp(e.When(), opts),
		Badge:     sev.String(),
	}
	if frag.Title == "" {
		frag.Title = "unknown"
	}
	if e.Details != "" {
		frag.Lines = []string{e.Details}
	}
	return frag
}

func initial(eventType string) string {
	trimmed := strings.TrimSpace(eventType)
	if trimmed == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

func placeholder(index int) Fragment {
	return Fragment{
		Kind:     KindPlaceholder,
		Severity: model.SeverityUnknown,
		Title:    fmt.Sprintf("Unreadable record #%d", index+1),
		Badge:    model.SeverityUnknown.String(),
	}
}

// safeScanRecord renders one record; a fault in one record yields a
// placeholder instead of aborting its siblings.
func safeScanRecord(index int, r model.ScanRecord, opts Options) (frag Fragment) {
	defer func() {
		if recover() != nil {
			frag = placeholder(index)
		}
	}()
	return ScanRecord(r, opts)
}
