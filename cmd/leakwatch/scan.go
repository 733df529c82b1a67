package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/dashboard"
	"github.com/example/leakwatch/internal/termui"
)

func newScanCommand(opts *config.Options, global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a network leak scan and print the classified results",
		Long: `Run one scan against the backend and print each record with its severity.
With --interactive the command stays open and scans again whenever Enter is pressed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts, global)
		},
	}
	opts.BindScanFlags(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Keep running and scan again on Enter (q quits)")
	return cmd
}

// completionSurface reports every completed scan on done.
type completionSurface struct {
	dashboard.Surface
	done chan struct{}
}

func (s *completionSurface) SetScanEnabled(enabled bool) {
	s.Surface.SetScanEnabled(enabled)
	if !enabled {
		return
	}
	select {
	case s.done <- struct{}{}:
	default:
	}
}

// scanAgain is what the console reports through SetScanEnabled.
type scanAgain interface {
	ScanEnabled() bool
}

func runScan(cmd *cobra.Command, opts *config.Options, global *globalOptions) error {
	a, err := newApp(opts, global, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	console := termui.NewConsole(out, termui.ConsoleOptions{Interactive: termui.IsTerminal(out)})
	surface := &completionSurface{Surface: console, done: make(chan struct{}, 1)}

	client, err := a.newScanClient()
	if err != nil {
		return errors.Wrap(config.ErrInvalid, err.Error())
	}
	ctrl, err := dashboard.New(dashboard.Config{
		Surface: surface,
		Canvas:  console,
		Fetcher: client,
		Policy:  opts.Policy(),
		Logger:  a.logger.WithName("controller"),
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()
	defer func() {
		cancel()
		<-runErr
	}()

	ctrl.StartScan()
	if !opts.Interactive {
		select {
		case <-ctx.Done():
			return nil
		case <-surface.done:
		}
		if ctrl.State() == dashboard.StateError {
			return errScanFailed
		}
		return nil
	}
	return promptLoop(ctx, cmd.InOrStdin(), ctrl, console)
}

// promptLoop reads commands from in until q, EOF or cancellation. Enter only
// starts a scan while the scan-again prompt is showing.
func promptLoop(ctx context.Context, in io.Reader, ctrl interface{ StartScan() }, prompt scanAgain) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "exit":
				return nil
			case "":
				if prompt.ScanEnabled() {
					ctrl.StartScan()
				}
			}
		}
	}
}
