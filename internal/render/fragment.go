// File: internal/render/fragment.go
// Brief: Display fragments and their escaped HTML/plain-text forms.

// Package render turns classified records into display fragments. Fragments
// keep raw text; every HTML form is produced through html/template so each
// interpolated field is escaped, and the plain-text form strips terminal
// control sequences.
package render

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"
	"unicode"

	"github.com/example/leakwatch/internal/model"
)

// Kind says which pipeline produced a fragment.
type Kind string

const (
	KindScan        Kind = "scan"
	KindEvent       Kind = "event"
	KindPlaceholder Kind = "placeholder"
)

// Fragment is one rendered record.
type Fragment struct {
	ID        string         `json:"id,omitempty"`
	Kind      Kind           `json:"kind"`
	Severity  model.Severity `json:"severity"`
	Initial   string         `json:"initial,omitempty"`
	Title     string         `json:"title"`
	Timestamp string         `json:"timestamp,omitempty"`
	Lines     []string       `json:"lines,omitempty"`
	Badge     string         `json:"badge,omitempty"`
}

// Tag is the severity styling tag of the fragment.
func (f Fragment) Tag() string {
	return f.Severity.Tag()
}

var fragmentTemplate = template.Must(template.New("fragment").Parse(fragmentHTML))

// HTML renders the fragment with every field escaped.
func (f Fragment) HTML() template.HTML {
	var buf bytes.Buffer
	if err := fragmentTemplate.Execute(&buf, f); err != nil {
		return template.HTML(`<div class="fragment sev-unknown"><div class="title">` + Escape(f.Title) + `</div></div>`)
	}
	return template.HTML(buf.String())
}

// Text renders a single line for terminals and logs.
func (f Fragment) Text() string {
	parts := []string{"[" + strings.ToUpper(f.Severity.String()) + "]", Sanitize(f.Title)}
	if f.Timestamp != "" {
		parts = append(parts, Sanitize(f.Timestamp))
	}
	for _, line := range f.Lines {
		if line = Sanitize(line); line != "" {
			parts = append(parts, line)
		}
	}
	if f.Badge != "" {
		parts = append(parts, Sanitize(f.Badge))
	}
	return strings.Join(parts, " · ")
}

// Escape replaces &, <, >, " and ' with HTML entities.
func Escape(s string) string {
	return template.HTMLEscapeString(s)
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// Sanitize removes ANSI sequences and other control characters so record text
// cannot drive the terminal it is printed on.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = ansiEscape.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

const fragmentHTML = `<div class="fragment {{.Tag}} fragment-{{.Kind}}" data-severity="{{.Severity}}"{{with .ID}} id="frag-{{.}}"{{end}}>
{{- with .Initial}}<div class="initial">{{.}}</div>{{end -}}
<div class="body"><div class="title">{{.Title}}</div>
{{- with .Timestamp}}<div class="meta">{{.}}</div>{{end}}
{{- range .Lines}}<div class="meta">{{.}}</div>{{end -}}
</div>
{{- with .Badge}}<div class="badge">{{.}}</div>{{end -}}
</div>`
