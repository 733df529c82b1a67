package main

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/example/leakwatch/internal/alertstore"
	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/feed"
	"github.com/example/leakwatch/internal/logging"
	"github.com/example/leakwatch/internal/metrics"
	"github.com/example/leakwatch/internal/scanclient"
)

// errScanFailed marks a scan whose failure was already shown to the user.
var errScanFailed = errors.New("scan failed")

// app holds the collaborators every command builds the same way.
type app struct {
	opts    *config.Options
	logger  logr.Logger
	metrics *metrics.Metrics
	alerts  *alertstore.Store
}

func newApp(opts *config.Options, global *globalOptions, errOut io.Writer) (*app, error) {
	logger, err := logging.NewWithOptions(logging.Options{Level: global.logLevel, Format: global.logFormat, Out: errOut})
	if err != nil {
		return nil, errors.Wrap(config.ErrInvalid, err.Error())
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &app{opts: opts, logger: logger, metrics: metrics.New()}, nil
}

// openAlerts opens the alert store unless persistence is disabled.
func (a *app) openAlerts() error {
	if a.opts.AlertsDB == "" {
		return nil
	}
	store, err := alertstore.New(a.opts.AlertsDB)
	if err != nil {
		return errors.Wrapf(err, "open alert store %s", a.opts.AlertsDB)
	}
	a.alerts = store
	a.logger.V(1).Info("alert store opened", "path", a.opts.AlertsDB)
	return nil
}

// newFeed builds the live feed, seeded from stored history and persisting
// new entries when an alert store is open.
func (a *app) newFeed(ctx context.Context) (*feed.Feed, error) {
	fd := feed.New(feed.Config{
		Render:  a.opts.RenderOptions(),
		Logger:  a.logger.WithName("feed"),
		Metrics: a.metrics,
	})
	if a.alerts == nil {
		return fd, nil
	}
	if a.opts.HistorySize > 0 {
		history, err := a.alerts.History(ctx, a.opts.HistorySize)
		if err != nil {
			return nil, errors.Wrap(err, "load alert history")
		}
		fd.Seed(history)
	}
	fd.AddSink(a.alerts)
	return fd, nil
}

func (a *app) newScanClient() (*scanclient.Client, error) {
	opts := a.opts.ScanClient()
	opts.Logger = a.logger.WithName("scanclient")
	return scanclient.New(opts)
}

func (a *app) close() {
	if a.alerts == nil {
		return
	}
	if err := a.alerts.Close(); err != nil {
		a.logger.Error(err, "close alert store")
	}
}
