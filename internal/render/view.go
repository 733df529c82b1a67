// File: internal/render/view.go
// Brief: Whole-screen views for the scanning and results states.

package render

import (
	"bytes"
	"html/template"

	"github.com/example/leakwatch/internal/model"
)

const (
	// EmptyMessage is shown whenever a results view has no records.
	EmptyMessage = "No network activity captured yet. Try again after some browsing."

	resultsHeading  = "Scan Results"
	scanningHeading = "Scanning..."
	scanningHint    = "Looking for devices on your network. This takes a few seconds."
)

// Mode is the screen a view belongs to.
type Mode string

const (
	ModeScanning Mode = "scanning"
	ModeResults  Mode = "results"
)

// View is everything the main display surface shows at once.
type View struct {
	Mode      Mode       `json:"mode"`
	Heading   string     `json:"heading"`
	Hint      string     `json:"hint,omitempty"`
	Error     string     `json:"error,omitempty"`
	Empty     string     `json:"empty,omitempty"`
	Fragments []Fragment `json:"fragments,omitempty"`
}

// Scanning reports whether this is the scanning screen.
func (v View) Scanning() bool {
	return v.Mode == ModeScanning
}

// Counts tallies fragments per severity.
func (v View) Counts() map[model.Severity]int {
	counts := make(map[model.Severity]int, len(v.Fragments))
	for _, f := range v.Fragments {
		counts[f.Severity]++
	}
	return counts
}

// ScanningView is the screen shown while a scan is pending.
func ScanningView() View {
	return View{Mode: ModeScanning, Heading: scanningHeading, Hint: scanningHint}
}

// Results renders a results screen. It accepts any slice, including nil, and
// an optional error message; records keep their input order.
func Results(records []model.ScanRecord, errMsg string, opts Options) View {
	view := View{Mode: ModeResults, Heading: resultsHeading, Error: errMsg}
	if len(records) == 0 {
		view.Empty = EmptyMessage
		return view
	}
	view.Fragments = make([]Fragment, 0, len(records))
	for i, r := range records {
		view.Fragments = append(view.Fragments, safeScanRecord(i, r, opts))
	}
	return view
}

var viewTemplate = template.Must(template.New("view").Parse(viewHTML))

// HTML renders the view; fragment bodies are already escaped.
func (v View) HTML() template.HTML {
	var buf bytes.Buffer
	if err := viewTemplate.Execute(&buf, v); err != nil {
		return template.HTML(`<div class="view"><div class="error">` + Escape(err.Error()) + `</div></div>`)
	}
	return template.HTML(buf.String())
}

const viewHTML = `<div class="view view-{{.Mode}}">
<h2>{{.Heading}}</h2>
{{- if .Scanning}}
<div class="radar"><canvas id="radarCanvas"></canvas><span class="radar-glyph">📡</span></div>
<p class="hint">{{.Hint}}</p>
{{- else}}
<div class="results">
{{- with .Error}}<div class="error">{{.}}</div>{{end}}
{{- with .Empty}}<div class="empty">{{.}}</div>{{end}}
{{- range .Fragments}}{{.HTML}}{{end}}
</div>
{{- end}}
</div>`
