package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewWithOptions(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestJSONLoggerHonoursVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{Level: "info", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("scan started", "generation", 1)
	logger.V(1).Info("hidden at info")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "scan started" || entry["logger"] != "leakwatch" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestDebugEnablesV1(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{Level: "debug", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.V(1).Info("stale scan result discarded")
	logger.V(2).Info("trace only")
	if !strings.Contains(buf.String(), "stale scan result discarded") || strings.Contains(buf.String(), "trace only") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
