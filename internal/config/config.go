// File: internal/config/config.go
// Brief: Runtime options for the leakwatch commands and their flag bindings.

// Package config defines the flag plumbing shared by leakwatch commands,
// translating Cobra/Viper flag values into a typed struct that the scan
// controller, the live feed and the dashboard server consume.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/dashboard"
	"github.com/example/leakwatch/internal/eventsource"
	"github.com/example/leakwatch/internal/render"
	"github.com/example/leakwatch/internal/scanclient"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultBackend  = "http://localhost:8000"
	DefaultListen   = ":8080"
	DefaultAlertsDB = "~/.leakwatch/alerts.db"
)

// Options holds all CLI configuration.
type Options struct {
	Backend        string
	ScanPath       string
	MinVisual      time.Duration
	RequestTimeout time.Duration
	Retries        int
	FrameInterval  time.Duration
	TimeZone       string
	TimeLocation   *time.Location

	Listen string
	Title  string

	NATSURL     string
	NATSSubject string
	NATSQueue   string
	AlertsDB    string
	NoAlerts    bool
	HistorySize int
	Interactive bool
}

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	policy := dashboard.DefaultPolicy()
	return &Options{
		Backend:        DefaultBackend,
		ScanPath:       scanclient.DefaultPath,
		MinVisual:      policy.MinVisualDuration,
		RequestTimeout: policy.RequestTimeout,
		Retries:        2,
		FrameInterval:  50 * time.Millisecond,
		Listen:         DefaultListen,
		Title:          "leakwatch",
		NATSSubject:    eventsource.DefaultSubject,
		AlertsDB:       DefaultAlertsDB,
		HistorySize:    50,
	}
}

// AddFlags binds every flag to the provided Cobra command.
func (o *Options) AddFlags(cmd *cobra.Command) {
	o.BindScanFlags(cmd.Flags())
	o.BindFeedFlags(cmd.Flags())
	o.BindServeFlags(cmd.Flags())
}

// BindScanFlags attaches scan lifecycle flags and returns their names.
func (o *Options) BindScanFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.Backend, "backend", o.Backend, "Base URL of the scan backend")
	names = append(names, "backend")
	fs.StringVar(&o.ScanPath, "scan-path", o.ScanPath, "Scan results path relative to --backend")
	names = append(names, "scan-path")
	fs.DurationVar(&o.MinVisual, "min-visual", o.MinVisual, "Minimum time the scanning screen stays up before the request is sent")
	names = append(names, "min-visual")
	fs.DurationVar(&o.RequestTimeout, "request-timeout", o.RequestTimeout, "Abort a scan request after this long")
	names = append(names, "request-timeout")
	fs.IntVar(&o.Retries, "retries", o.Retries, "Retries for failed scan requests (5xx and connection errors)")
	names = append(names, "retries")
	fs.DurationVar(&o.FrameInterval, "frame-interval", o.FrameInterval, "Delay between scanning animation frames")
	names = append(names, "frame-interval")
	fs.StringVar(&o.TimeZone, "timezone", "", "IANA timezone used when rendering timestamps (defaults to local time)")
	names = append(names, "timezone")
	return names
}

// BindFeedFlags attaches live feed flags and returns their names.
func (o *Options) BindFeedFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.NATSURL, "nats-url", o.NATSURL, "NATS server delivering live events (empty disables the subscription)")
	names = append(names, "nats-url")
	fs.StringVar(&o.NATSSubject, "nats-subject", o.NATSSubject, "NATS subject carrying live events")
	names = append(names, "nats-subject")
	fs.StringVar(&o.NATSQueue, "nats-queue", o.NATSQueue, "Optional NATS queue group")
	names = append(names, "nats-queue")
	fs.StringVar(&o.AlertsDB, "alerts-db", o.AlertsDB, "SQLite file holding live event history")
	names = append(names, "alerts-db")
	fs.BoolVar(&o.NoAlerts, "no-alerts", false, "Do not persist live events")
	names = append(names, "no-alerts")
	fs.IntVar(&o.HistorySize, "history", o.HistorySize, "Stored live events loaded into the feed at start-up")
	names = append(names, "history")
	return names
}

// BindServeFlags attaches dashboard server flags and returns their names.
func (o *Options) BindServeFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.Listen, "listen", o.Listen, "Address the dashboard listens on")
	names = append(names, "listen")
	fs.StringVar(&o.Title, "title", o.Title, "Dashboard page title")
	names = append(names, "title")
	return names
}

// Validate checks coherence and resolves derived fields.
func (o *Options) Validate() error {
	o.Backend = strings.TrimSpace(o.Backend)
	u, err := url.Parse(o.Backend)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: --backend %q must be an http(s) URL", ErrInvalid, o.Backend)
	}
	if o.MinVisual < 0 {
		return fmt.Errorf("%w: --min-visual cannot be negative", ErrInvalid)
	}
	if o.RequestTimeout <= 0 {
		return fmt.Errorf("%w: --request-timeout must be positive", ErrInvalid)
	}
	if o.Retries < 0 {
		return fmt.Errorf("%w: --retries cannot be negative", ErrInvalid)
	}
	if o.FrameInterval < 10*time.Millisecond {
		return fmt.Errorf("%w: --frame-interval must be at least 10ms", ErrInvalid)
	}
	o.TimeLocation = time.Local
	if tz := strings.TrimSpace(o.TimeZone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("%w: --timezone %q: %v", ErrInvalid, tz, err)
		}
		o.TimeLocation = loc
	}
	if o.Listen != "" {
		if _, _, err := net.SplitHostPort(o.Listen); err != nil {
			return fmt.Errorf("%w: --listen %q: %v", ErrInvalid, o.Listen, err)
		}
	}
	if o.HistorySize < 0 {
		return fmt.Errorf("%w: --history cannot be negative", ErrInvalid)
	}
	if strings.TrimSpace(o.NATSSubject) == "" {
		return fmt.Errorf("%w: --nats-subject cannot be empty", ErrInvalid)
	}
	if o.NoAlerts || strings.TrimSpace(o.AlertsDB) == "" {
		o.AlertsDB = ""
	} else {
		path, err := homedir.Expand(strings.TrimSpace(o.AlertsDB))
		if err != nil {
			return fmt.Errorf("%w: --alerts-db %q: %v", ErrInvalid, o.AlertsDB, err)
		}
		o.AlertsDB = path
	}
	return nil
}

// RenderOptions returns the rendering settings.
func (o *Options) RenderOptions() render.Options {
	return render.Options{Location: o.TimeLocation}
}

// Policy returns the scan pacing for the controller.
func (o *Options) Policy() dashboard.Policy {
	return dashboard.Policy{
		MinVisualDuration: o.MinVisual,
		RequestTimeout:    o.RequestTimeout,
		Frame:             anim.Options{Interval: o.FrameInterval},
		Render:            o.RenderOptions(),
	}
}

// ScanClient returns the scan client settings.
func (o *Options) ScanClient() scanclient.Options {
	return scanclient.Options{
		BaseURL:  o.Backend,
		Path:     o.ScanPath,
		RetryMax: o.Retries,
	}
}
