// config_test.go verifies Options defaults, flag binding and validation.
package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	if opts.MinVisual != 3*time.Second {
		t.Fatalf("min visual default mismatch, got %s", opts.MinVisual)
	}
	if opts.RequestTimeout != 20*time.Second {
		t.Fatalf("request timeout default mismatch, got %s", opts.RequestTimeout)
	}
	if opts.ScanPath != "/api/events?n=50" {
		t.Fatalf("scan path default mismatch, got %s", opts.ScanPath)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestBindFlagsParses(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	names := append(opts.BindScanFlags(fs), opts.BindFeedFlags(fs)...)
	names = append(names, opts.BindServeFlags(fs)...)
	for _, name := range names {
		if fs.Lookup(name) == nil {
			t.Fatalf("flag %s not registered", name)
		}
	}
	err := fs.Parse([]string{"--backend", "https://scanner.local:9000", "--min-visual", "0s", "--timezone", "UTC", "--no-alerts", "--listen", "127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opts.MinVisual != 0 || opts.TimeLocation != time.UTC || opts.AlertsDB != "" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	policy := opts.Policy()
	if policy.MinVisualDuration != 0 || policy.Render.Location != time.UTC {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	if opts.ScanClient().BaseURL != "https://scanner.local:9000" {
		t.Fatalf("unexpected scan client options: %+v", opts.ScanClient())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Options){
		"backend scheme":   func(o *Options) { o.Backend = "ftp://host" },
		"backend empty":    func(o *Options) { o.Backend = "" },
		"negative visual":  func(o *Options) { o.MinVisual = -time.Second },
		"zero timeout":     func(o *Options) { o.RequestTimeout = 0 },
		"negative retries": func(o *Options) { o.Retries = -1 },
		"fast frames":      func(o *Options) { o.FrameInterval = time.Millisecond },
		"bad timezone":     func(o *Options) { o.TimeZone = "Mars/Olympus" },
		"bad listen":       func(o *Options) { o.Listen = "8080" },
		"empty subject":    func(o *Options) { o.NATSSubject = " " },
		"negative history": func(o *Options) { o.HistorySize = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := NewOptions()
			mutate(opts)
			if err := opts.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err=%v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidateExpandsAlertsPath(t *testing.T) {
	opts := NewOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if strings.HasPrefix(opts.AlertsDB, "~") || !strings.HasSuffix(opts.AlertsDB, "alerts.db") {
		t.Fatalf("alerts path not expanded: %s", opts.AlertsDB)
	}
}
