// File: internal/classify/classify.go
// Brief: Deterministic severity classification for scan records and live events.

// Package classify maps raw records to exactly one severity tier. Every
// function here is total: any input, including zero values, yields a tier.
package classify

import (
	"strings"

	"github.com/example/leakwatch/internal/model"
)

// keywordOrder is the precedence used for live-event details; earlier
// keywords win when several appear in the same text.
var keywordOrder = []struct {
	keyword  string
	severity model.Severity
}{
	{keyword: "risky", severity: model.SeverityRisky},
	{keyword: "warning", severity: model.SeverityWarning},
	{keyword: "secure", severity: model.SeveritySecure},
}

// Details classifies free text by case-insensitive substring search.
func Details(details string) model.Severity {
	if details == "" {
		return model.SeverityUnknown
	}
	lower := strings.ToLower(details)
	for _, rule := range keywordOrder {
		if strings.Contains(lower, rule.keyword) {
			return rule.severity
		}
	}
	return model.SeverityUnknown
}

// Verdict classifies an explicit backend verdict (RISK or SAFE, any case).
func Verdict(verdict string) model.Severity {
	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case "RISK":
		return model.SeverityRisk
	case "SAFE":
		return model.SeveritySafe
	default:
		return model.SeverityUnknown
	}
}

// Record classifies a scan record. A verdict, when present, decides; a
// device record without one falls back to its leak flag.
func Record(r model.ScanRecord) model.Severity {
	if strings.TrimSpace(r.Verdict) != "" {
		return Verdict(r.Verdict)
	}
	if r.Leak != nil {
		if *r.Leak {
			return model.SeverityRisk
		}
		return model.SeveritySafe
	}
	return model.SeverityUnknown
}

// Event classifies a live event from its details text.
func Event(e model.LiveEvent) model.Severity {
	return Details(e.Details)
}
