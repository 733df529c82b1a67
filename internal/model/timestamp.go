// File: internal/model/timestamp.go
// Brief: Lenient timestamp values (epoch seconds, epoch milliseconds or text).

package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// MillisThreshold separates epoch seconds from epoch milliseconds: numeric
// timestamps below it are seconds, values at or above it are milliseconds.
const MillisThreshold = 10_000_000_000

var textLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
}

type timestampKind uint8

const (
	timestampNone timestampKind = iota
	timestampNumber
	timestampText
)

// Timestamp holds whatever the backend sent: a number (seconds or
// milliseconds since the epoch) or a string. The zero value is "absent".
type Timestamp struct {
	kind timestampKind
	num  float64
	text string
}

// NumericTimestamp wraps an epoch value in seconds or milliseconds.
func NumericTimestamp(v float64) Timestamp {
	return Timestamp{kind: timestampNumber, num: v}
}

// TextTimestamp wraps a textual timestamp.
func TextTimestamp(s string) Timestamp {
	if strings.TrimSpace(s) == "" {
		return Timestamp{}
	}
	return Timestamp{kind: timestampText, text: s}
}

// IsZero reports whether no timestamp was supplied.
func (t Timestamp) IsZero() bool {
	return t.kind == timestampNone
}

// Raw returns the timestamp as the backend sent it.
func (t Timestamp) Raw() string {
	switch t.kind {
	case timestampNumber:
		return strconv.FormatFloat(t.num, 'f', -1, 64)
	case timestampText:
		return t.text
	default:
		return ""
	}
}

// Time resolves the timestamp to an instant. Naive text timestamps are read
// as UTC. The boolean is false when the value is absent or unparseable.
func (t Timestamp) Time() (time.Time, bool) {
	switch t.kind {
	case timestampNumber:
		return epochTime(t.num)
	case timestampText:
		raw := strings.TrimSpace(t.text)
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return epochTime(n)
		}
		for _, layout := range textLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func epochTime(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	ms := v
	if v < MillisThreshold {
		ms = v * 1000
	}
	return time.UnixMilli(int64(math.Round(ms))), true
}

// MarshalJSON writes the timestamp back in its original form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case timestampNumber:
		return []byte(strconv.FormatFloat(t.num, 'f', -1, 64)), nil
	case timestampText:
		return json.Marshal(t.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts numbers and strings; anything else leaves the
// timestamp absent rather than failing the enclosing record.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t = timestampFromValue(raw)
	return nil
}

func timestampFromValue(raw any) Timestamp {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return Timestamp{}
		}
		return NumericTimestamp(n)
	case float64:
		return NumericTimestamp(v)
	case string:
		return TextTimestamp(v)
	default:
		return Timestamp{}
	}
}
