// File: internal/model/record.go
// Brief: Scan records as returned by the scan-results backend.

// Package model holds the records leakwatch consumes from its collaborators
// (scan results and live events) and the severity tiers they classify to.
// Decoding is deliberately lenient: a record with missing or mistyped fields
// still decodes, with the offending fields left empty.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Shape distinguishes the two record layouts the backend produces.
type Shape int

const (
	// ShapeConnection is a per-connection record: {pid, process_name, laddr, raddr, verdict, ...}.
	ShapeConnection Shape = iota
	// ShapeDevice is a per-device record: {name, leak, status, ...}.
	ShapeDevice
)

func (s Shape) String() string {
	switch s {
	case ShapeDevice:
		return "device"
	default:
		return "connection"
	}
}

// ScanRecord is a single scan result. It is the union of the device and
// connection layouts; Shape reports which one a record follows.
type ScanRecord struct {
	// device layout
	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Destination  string `json:"destination,omitempty"`
	Leak         *bool  `json:"leak,omitempty"`

	// connection layout
	PID         *int64 `json:"pid,omitempty"`
	ProcessName string `json:"process_name,omitempty"`
	LocalAddr   string `json:"laddr,omitempty"`
	RemoteAddr  string `json:"raddr,omitempty"`
	Verdict     string `json:"verdict,omitempty"`

	Status    string    `json:"status,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// Shape reports whether the record is device- or connection-oriented.
func (r ScanRecord) Shape() Shape {
	if r.PID != nil || r.ProcessName != "" || r.LocalAddr != "" || r.RemoteAddr != "" {
		return ShapeConnection
	}
	if r.Name != "" || r.Leak != nil || r.Manufacturer != "" {
		return ShapeDevice
	}
	return ShapeConnection
}

// UnmarshalJSON decodes either record layout. It never fails: values of the
// wrong type are dropped and non-object input yields an empty record.
func (r *ScanRecord) UnmarshalJSON(data []byte) error {
	*r = ScanRecord{}
	fields, ok := decodeObject(data)
	if !ok {
		return nil
	}
	r.Name = stringField(fields, "name")
	r.Manufacturer = stringField(fields, "manufacturer")
	r.Destination = stringField(fields, "destination")
	r.Leak = boolField(fields, "leak", "leakFlag", "leak_flag")
	r.PID = intField(fields, "pid")
	r.ProcessName = stringField(fields, "process_name", "processName", "processIdentity")
	r.LocalAddr = stringField(fields, "laddr", "localAddr")
	r.RemoteAddr = stringField(fields, "raddr", "remoteAddr")
	r.Verdict = stringField(fields, "verdict")
	r.Status = stringField(fields, "status")
	if raw, ok := fields["timestamp"]; ok {
		r.Timestamp = timestampFromValue(raw)
	}
	return nil
}

type recordEnvelope struct {
	Events  *[]ScanRecord `json:"events"`
	Devices *[]ScanRecord `json:"devices"`
}

// DecodeRecords decodes a scan-results response body. It accepts a bare JSON
// array, {"events": [...]} or {"devices": [...]} and preserves input order.
// Only a body that is not JSON at all is an error.
func DecodeRecords(body []byte) ([]ScanRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var records []ScanRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode scan records: %w", err)
		}
		return records, nil
	case '{':
		var env recordEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode scan response: %w", err)
		}
		switch {
		case env.Events != nil:
			return *env.Events, nil
		case env.Devices != nil:
			return *env.Devices, nil
		default:
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("decode scan response: unexpected payload starting with %q", trimmed[0])
	}
}

func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func boolField(fields map[string]any, keys ...string) *bool {
	for _, key := range keys {
		var out bool
		switch v := fields[key].(type) {
		case bool:
			out = v
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			out = parsed
		case json.Number:
			n, err := v.Float64()
			if err != nil {
				continue
			}
			out = n != 0
		default:
			continue
		}
		return &out
	}
	return nil
}

func intField(fields map[string]any, keys ...string) *int64 {
	for _, key := range keys {
		var raw string
		switch v := fields[key].(type) {
		case json.Number:
			raw = v.String()
		case string:
			raw = strings.TrimSpace(v)
		default:
			continue
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			n := int64(f)
			return &n
		}
	}
	return nil
}
