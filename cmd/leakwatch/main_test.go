package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/render"
	"github.com/example/leakwatch/internal/scanclient"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionShort(t *testing.T) {
	t.Setenv("LEAKWATCH_CONFIG", writeConfig(t, "{}\n"))
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"version", "--short"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "dev" {
		t.Fatalf("expected dev, got %q", got)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "scan", "feed", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command, got %v (%v)", name, cmd, err)
		}
	}
	scan, _, _ := root.Find([]string{"scan"})
	if scan.Flags().Lookup("interactive") == nil {
		t.Fatalf("scan should accept --interactive")
	}
	if scan.Flags().Lookup("listen") != nil {
		t.Fatalf("scan should not accept --listen")
	}
}

func newFlagViper(t *testing.T) (*viper.Viper, *pflag.FlagSet) {
	t.Helper()
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("LEAKWATCH")
	v.AutomaticEnv()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("backend", config.DefaultBackend, "")
	fs.Duration("min-visual", 0, "")
	if err := v.BindPFlags(fs); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return v, fs
}

func TestApplyViperUsesEnvironment(t *testing.T) {
	t.Setenv("LEAKWATCH_BACKEND", "http://scanner:9000")
	t.Setenv("LEAKWATCH_MIN_VISUAL", "1s")
	v, fs := newFlagViper(t)
	applyViper(v, fs)
	if got, _ := fs.GetString("backend"); got != "http://scanner:9000" {
		t.Fatalf("backend = %q", got)
	}
	if got, _ := fs.GetDuration("min-visual"); got.String() != "1s" {
		t.Fatalf("min-visual = %s", got)
	}
}

func TestApplyViperKeepsExplicitFlags(t *testing.T) {
	t.Setenv("LEAKWATCH_BACKEND", "http://scanner:9000")
	v, fs := newFlagViper(t)
	if err := fs.Parse([]string{"--backend", "http://cli:1"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	applyViper(v, fs)
	if got, _ := fs.GetString("backend"); got != "http://cli:1" {
		t.Fatalf("explicit flag overridden: %q", got)
	}
}

func TestApplyViperReadsConfigFile(t *testing.T) {
	v, fs := newFlagViper(t)
	configureConfigFile(v, writeConfig(t, "backend: http://from-file:8000\n"))
	if err := readConfigFile(v, true); err != nil {
		t.Fatalf("read config: %v", err)
	}
	applyViper(v, fs)
	if got, _ := fs.GetString("backend"); got != "http://from-file:8000" {
		t.Fatalf("backend = %q", got)
	}
}

func TestReadConfigFileMissing(t *testing.T) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(t.TempDir())
	if err := readConfigFile(v, false); err != nil {
		t.Fatalf("missing optional config should be ignored: %v", err)
	}

	strict := viper.New()
	strict.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err := readConfigFile(strict, true); err == nil {
		t.Fatalf("expected an error for an explicit missing config file")
	}
}

func TestConfigSearchDirs(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dirs := configSearchDirs()
	if len(dirs) == 0 || dirs[0] != filepath.Join(xdg, "leakwatch") {
		t.Fatalf("expected XDG dir first, got %v", dirs)
	}
}

func TestHandleError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "help", err: pflag.ErrHelp, want: ""},
		{name: "scan failed", err: errScanFailed, want: ""},
		{name: "invalid", err: fmt.Errorf("%w: --retries cannot be negative", config.ErrInvalid), want: "--help"},
		{name: "transport", err: &scanclient.TransportError{URL: "http://x", Err: errors.New("refused")}, want: "--backend"},
		{name: "deadline", err: context.DeadlineExceeded, want: "--request-timeout"},
		{name: "other", err: errors.New("boom"), want: "Error: boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			handleError(&buf, tc.err)
			if tc.want == "" {
				if buf.Len() != 0 {
					t.Fatalf("expected no output, got %q", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, buf.String())
			}
		})
	}
}

type fakeSurface struct {
	enabled []bool
}

func (f *fakeSurface) ShowScanning(render.View) {}
func (f *fakeSurface) ShowView(render.View)     {}
func (f *fakeSurface) SetScanEnabled(enabled bool) {
	f.enabled = append(f.enabled, enabled)
}

func TestCompletionSurfaceSignalsOnEnable(t *testing.T) {
	inner := &fakeSurface{}
	s := &completionSurface{Surface: inner, done: make(chan struct{}, 1)}
	s.SetScanEnabled(false)
	select {
	case <-s.done:
		t.Fatalf("disable should not signal completion")
	default:
	}
	s.SetScanEnabled(true)
	s.SetScanEnabled(true)
	select {
	case <-s.done:
	default:
		t.Fatalf("expected completion signal")
	}
	if len(inner.enabled) != 3 {
		t.Fatalf("calls not forwarded: %v", inner.enabled)
	}
}

type countingScanner struct{ n int }

func (c *countingScanner) StartScan() { c.n++ }

type fixedPrompt bool

func (p fixedPrompt) ScanEnabled() bool { return bool(p) }

func TestPromptLoop(t *testing.T) {
	sc := &countingScanner{}
	if err := promptLoop(context.Background(), strings.NewReader("\n  \nhello\nq\n\n"), sc, fixedPrompt(true)); err != nil {
		t.Fatalf("prompt loop: %v", err)
	}
	if sc.n != 2 {
		t.Fatalf("expected 2 scans before q, got %d", sc.n)
	}

	hidden := &countingScanner{}
	if err := promptLoop(context.Background(), strings.NewReader("\n\n"), hidden, fixedPrompt(false)); err != nil {
		t.Fatalf("prompt loop: %v", err)
	}
	if hidden.n != 0 {
		t.Fatalf("scan again is hidden, got %d scans", hidden.n)
	}
}
