package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/eventsource"
	"github.com/example/leakwatch/internal/termui"
)

func newFeedCommand(opts *config.Options, global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Follow the live activity feed in the terminal",
		Long: `Print stored activity history, then follow live events published on NATS.
Each event is classified from its details and printed with its severity badge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFeed(cmd, opts, global)
		},
	}
	opts.BindFeedFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.TimeZone, "timezone", "", "IANA timezone used when rendering timestamps (defaults to local time)")
	return cmd
}

func runFeed(cmd *cobra.Command, opts *config.Options, global *globalOptions) error {
	a, err := newApp(opts, global, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.NATSURL == "" {
		return errors.Wrap(config.ErrInvalid, "--nats-url is required for feed")
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
	printer := termui.NewFeedPrinter(cmd.OutOrStdout(), 0)
	if err := printer.PrintHistory(fd.Snapshot()); err != nil {
		return err
	}
	fd.AddSink(printer)

	nc, err := eventsource.Connect(opts.NATSURL, a.logger.WithName("nats"))
	if err != nil {
		return err
	}
	defer nc.Close()
	sub, err := eventsource.NewSubscriber(nc, eventsource.Options{
		Subject: opts.NATSSubject,
		Queue:   opts.NATSQueue,
	}, fd.Push, a.metrics, a.logger.WithName("eventsource"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Following %s on %s (Ctrl-C to stop)\n", opts.NATSSubject, opts.NATSURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fd.Run(gctx) })
	g.Go(func() error { return sub.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
