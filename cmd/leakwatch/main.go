// main.go bootstraps leakwatch: it builds the root Cobra command, binds
// environment and config-file values, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/leakwatch/internal/config"
	"github.com/example/leakwatch/internal/scanclient"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(os.Stderr, err)
	if err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	global := &globalOptions{logLevel: "info", logFormat: "console"}
	cmd := &cobra.Command{
		Use:           "leakwatch",
		Short:         "Scan your network for data leaks and watch live activity",
		Long:          "leakwatch shows which devices and connections on your network leak data, with a live feed of classified activity.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&global.logLevel, "log-level", global.logLevel, "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&global.logFormat, "log-format", global.logFormat, "Log encoding (console, json)")

	serveCmd := newServeCommand(opts, global)
	scanCmd := newScanCommand(opts, global)
	feedCmd := newFeedCommand(opts, global)
	cmd.AddCommand(serveCmd, scanCmd, feedCmd, newVersionCommand())
	cmd.Example = `  # Serve the dashboard against a local backend
  leakwatch serve --backend http://localhost:8000 --listen :8080

  # Scan once from the terminal, then offer to scan again
  leakwatch scan --interactive

  # Follow live events published on NATS
  leakwatch feed --nats-url nats://localhost:4222`
	bindViper(cmd, serveCmd, scanCmd, feedCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("LEAKWATCH")
	v.AutomaticEnv()
	configFile := os.Getenv("LEAKWATCH_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			applyViper(v, cmd.Flags())
			applyViper(v, cmd.PersistentFlags())
		}
	})
}

// applyViper copies environment and config-file values into flags the user
// did not set on the command line.
func applyViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		val := fmt.Sprintf("%v", v.Get(f.Name))
		if val != "" {
			_ = f.Value.Set(val)
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "leakwatch"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "leakwatch"), filepath.Join(home, ".leakwatch"))
	}
	return dirs
}

func handleError(w io.Writer, err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, errScanFailed):
		return
	case errors.Is(err, config.ErrInvalid):
		message = fmt.Sprintf("%s\nHint: run 'leakwatch <command> --help' to list accepted values.", err)
	case errors.Is(err, scanclient.ErrTransport):
		message = fmt.Sprintf("%s\nHint: verify --backend points at a running scan backend.", err)
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: increase --request-timeout or check network connectivity.", err)
	}
	fmt.Fprintf(w, "Error: %s\n", message)
}
