// File: internal/dashcast/messages.go
// Brief: JSON envelopes exchanged with dashboard pages.

package dashcast

import (
	"encoding/json"

	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/feed"
	"github.com/example/leakwatch/internal/render"
)

// Outbound message types.
const (
	msgView     = "view"
	msgControl  = "control"
	msgFrame    = "frame"
	msgFeed     = "feed"
	msgSnapshot = "snapshot"
)

// Inbound message types.
const (
	msgResize = "resize"
	msgScan   = "scan"
)

type envelope struct {
	Type    string        `json:"type"`
	View    *viewPayload  `json:"view,omitempty"`
	Enabled *bool         `json:"enabled,omitempty"`
	Frame   *framePayload `json:"frame,omitempty"`
	Feed    []feedPayload `json:"feed,omitempty"`
}

// viewPayload carries server-rendered, escaped markup.
type viewPayload struct {
	Mode   render.Mode    `json:"mode"`
	HTML   string         `json:"html"`
	Error  string         `json:"error,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
}

type feedPayload struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	HTML     string `json:"html"`
}

// framePayload is one flicker frame. Cells are laid out column by column
// every Gap units; Alpha holds one byte per cell and encodes as base64.
type framePayload struct {
	Seq    uint64   `json:"seq"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Gap    int      `json:"gap"`
	Size   int      `json:"size"`
	Colour [3]uint8 `json:"colour"`
	Alpha  []byte   `json:"alpha"`
}

type inbound struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func newViewPayload(v render.View) *viewPayload {
	p := &viewPayload{Mode: v.Mode, HTML: string(v.HTML()), Error: v.Error}
	if !v.Scanning() {
		p.Counts = make(map[string]int)
		for sev, n := range v.Counts() {
			p.Counts[sev.String()] = n
		}
	}
	return p
}

func newFeedPayload(e feed.Entry) feedPayload {
	return feedPayload{
		ID:       e.Fragment.ID,
		Severity: e.Fragment.Severity.String(),
		HTML:     string(e.Fragment.HTML()),
	}
}

func newFramePayload(f anim.Frame) *framePayload {
	p := &framePayload{
		Seq:    f.Seq,
		Width:  f.Width,
		Height: f.Height,
		Gap:    f.Gap,
		Colour: f.Colour,
		Alpha:  f.Alphas(),
	}
	if len(f.Cells) > 0 {
		p.Size = f.Cells[0].Size
	}
	return p
}

func encode(e envelope) ([]byte, error) {
	return json.Marshal(e)
}
