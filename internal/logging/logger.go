// File: internal/logging/logger.go
// Brief: logr constructor backed by zap through controller-runtime.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options select level, encoding and destination.
type Options struct {
	Level string
	// Format is "console" (default) or "json".
	Format string
	Out    io.Writer
}

// New returns a console logger on stderr at the given level.
func New(level string) (logr.Logger, error) {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions builds a logger. "trace" enables V(2) diagnostics and
// "debug" enables V(1).
func NewWithOptions(o Options) (logr.Logger, error) {
	lvl, dev, err := ParseLevel(o.Level)
	if err != nil {
		return logr.Logger{}, err
	}
	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	atomic := zap.NewAtomicLevelAt(lvl)
	opts := crzap.Options{Development: dev, Level: &atomic, DestWriter: out}
	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "", "console":
		crzap.ConsoleEncoder()(&opts)
	case "json":
		crzap.JSONEncoder()(&opts)
	default:
		return logr.Logger{}, fmt.Errorf("unknown log format %q (expected console or json)", o.Format)
	}
	return crzap.New(crzap.UseFlagOptions(&opts)).WithName("leakwatch"), nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zapcore.Level(-2), true, nil
	case "debug":
		return zapcore.DebugLevel, true, nil
	case "info", "":
		return zapcore.InfoLevel, false, nil
	case "warn", "warning":
		return zapcore.WarnLevel, false, nil
	case "error":
		return zapcore.ErrorLevel, false, nil
	default:
		return 0, false, fmt.Errorf("unknown log level %q (expected trace, debug, info, warn, or error)", level)
	}
}
