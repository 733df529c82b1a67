// File: internal/model/severity.go
// Brief: Severity tiers shared by the scan and live-event pipelines.

package model

import "strings"

// Severity is the display tier a record classifies to. Scan results use
// risk/safe/unknown, live events use risky/warning/secure/unknown.
type Severity string

const (
	SeverityRisky   Severity = "risky"
	SeverityWarning Severity = "warning"
	SeveritySecure  Severity = "secure"
	SeverityRisk    Severity = "risk"
	SeveritySafe    Severity = "safe"
	SeverityUnknown Severity = "unknown"
)

func (s Severity) String() string {
	if s == "" {
		return string(SeverityUnknown)
	}
	return string(s)
}

// Positive reports whether the tier should get the green styling.
func (s Severity) Positive() bool {
	return s == SeveritySafe || s == SeveritySecure
}

// Negative reports whether the tier should get the red styling.
func (s Severity) Negative() bool {
	return s == SeverityRisk || s == SeverityRisky
}

// Tag is the CSS class the browser surface styles fragments with.
func (s Severity) Tag() string {
	return "sev-" + s.String()
}

// Rank orders tiers for sorting and comparisons (unknown=0, most severe highest).
func (s Severity) Rank() int {
	switch s {
	case SeveritySafe, SeveritySecure:
		return 1
	case SeverityWarning:
		return 2
	case SeverityRisk, SeverityRisky:
		return 3
	default:
		return 0
	}
}

// ParseSeverity maps a stored tier name back to a Severity. Anything it does
// not recognise is unknown.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityRisky:
		return SeverityRisky
	case SeverityWarning:
		return SeverityWarning
	case SeveritySecure:
		return SeveritySecure
	case SeverityRisk:
		return SeverityRisk
	case SeveritySafe:
		return SeveritySafe
	default:
		return SeverityUnknown
	}
}
