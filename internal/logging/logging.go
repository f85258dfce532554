// Package logging builds the CLI's structured logger.
//
// Library code logs through an injected *slog.Logger. The CLI backs that
// logger with a zap core so output gets zap's encoders and level handling:
// console format for terminals, JSON for log shippers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// LevelEnvVar overrides the configured level when set.
const LevelEnvVar = "LEDBOARD_LOG_LEVEL"

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures [New].
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info, unless
	// LEDBOARD_LOG_LEVEL is set.
	Level string

	// Format is console or json. Empty means json.
	Format string

	// Output defaults to stderr.
	Output io.Writer
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", s)
	}
}

// New returns a slog logger backed by a zap core, plus a sync function
// to flush buffered output on exit.
func New(opts Options) (*slog.Logger, func() error, error) {
	levelName := opts.Level
	if env := os.Getenv(LevelEnvVar); env != "" {
		levelName = env
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case "", FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q (expected console or json)", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))

	return slog.New(zapslog.NewHandler(core)), core.Sync, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(zapslog.NewHandler(zapcore.NewNopCore()))
}
