package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/dashboard"
	"github.com/example/leakwatch/internal/dashcast"
	"github.com/example/leakwatch/internal/eventsource"
)

func newServeCommand(opts *config.Options, global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan dashboard and live feed over HTTP",
		Long: `Serve the browser dashboard. The page starts a scan on load, shows the
flicker animation while it runs and renders the classified results. Live events
arrive over NATS or POST /api/feed and are prepended to the activity feed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, global)
		},
	}
	opts.AddFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, opts *config.Options, global *globalOptions) error {
	a, err := newApp(opts, global, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.Listen == "" {
		return errors.Wrap(config.ErrInvalid, "--listen is required for serve")
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.openAlerts(); err != nil {
		return err
	}
	defer a.close()

	fd, err := a.newFeed(ctx)
	if err != nil {
		return err
	}
	dcfg := dashcast.Config{
		Addr:    opts.Listen,
		Title:   opts.Title,
		Logger:  a.logger.WithName("dashcast"),
		Metrics: a.metrics,
		Ingest:  fd.Push,
	}
	if a.alerts != nil {
		dcfg.Alerts = a.alerts
	}
	srv := dashcast.New(dcfg)
	srv.SeedFeed(fd.Snapshot())
	fd.AddSink(srv)

	client, err := a.newScanClient()
	if err != nil {
		return errors.Wrap(config.ErrInvalid, err.Error())
	}
	ctrl, err := dashboard.New(dashboard.Config{
		Surface: srv,
		Canvas:  srv,
		Fetcher: client,
		Policy:  opts.Policy(),
		Logger:  a.logger.WithName("controller"),
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	srv.SetScanner(ctrl)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fd.Run(gctx) })
	g.Go(func() error { return ctrl.Run(gctx) })

	if opts.NATSURL != "" {
		nc, err := eventsource.Connect(opts.NATSURL, a.logger.WithName("nats"))
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer nc.Close()
		sub, err := eventsource.NewSubscriber(nc, eventsource.Options{
			Subject: opts.NATSSubject,
			Queue:   opts.NATSQueue,
		}, fd.Push, a.metrics, a.logger.WithName("eventsource"))
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return sub.Run(gctx) })
	}

	if err := dashcast.Start(gctx, srv, cmd.ErrOrStderr()); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dashboard listening on %s (backend %s)\n", opts.Listen, opts.Backend)
	a.logger.Info("dashboard started", "addr", opts.Listen, "backend", opts.Backend, "nats", opts.NATSURL != "")

	// The first scan runs as soon as the page is served, like a page load.
	ctrl.StartScan()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
