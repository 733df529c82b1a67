// File: internal/termui/paint.go
// Brief: Severity colours and fragment line formatting for terminals.

package termui

import (
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/example/leakwatch/internal/model"
	"github.com/example/leakwatch/internal/render"
)

var typeTitleCaser = cases.Title(language.Und, cases.NoLower)

func severityPainter(sev model.Severity) *color.Color {
	switch {
	case sev.Negative():
		return color.New(color.FgRed, color.Bold)
	case sev == model.SeverityWarning:
		return color.New(color.FgYellow)
	case sev.Positive():
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgHiBlack)
	}
}

func chip(sev model.Severity) string {
	return severityPainter(sev).Sprintf("%-7s", strings.ToUpper(sev.String()))
}

// fragmentLines formats a fragment as a title line plus indented detail
// lines, all stripped of control sequences and fitted to width.
func fragmentLines(f render.Fragment, width int) []string {
	title := render.Sanitize(f.Title)
	if f.Kind == render.KindEvent {
		title = typeTitleCaser.String(title)
	}
	head := chip(f.Severity) + " " + truncate(title, width-10)
	if f.Badge != "" && f.Badge != f.Severity.String() {
		head += color.New(color.FgHiBlack).Sprint("  " + render.Sanitize(f.Badge))
	}
	lines := []string{head}
	if f.Timestamp != "" {
		lines = append(lines, "        "+color.New(color.FgHiBlack).Sprint(render.Sanitize(f.Timestamp)))
	}
	for _, l := range f.Lines {
		lines = append(lines, "        "+truncate(render.Sanitize(l), width-8))
	}
	return lines
}

var severityOrder = []model.Severity{
	model.SeverityRisk,
	model.SeverityRisky,
	model.SeverityWarning,
	model.SeveritySafe,
	model.SeveritySecure,
	model.SeverityUnknown,
}
