// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the global logger.
type Config struct {
	Level  string // trace, debug, info, warn, error, disabled; default info
	Format string // json or console; default json
	Caller bool

	// Timestamp adds an RFC 3339 "time" field.
	Timestamp bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// NodeID is stamped on every record as node_id so that output from
	// several cluster nodes can be merged. Empty omits the field.
	NodeID string

	// ConnectionDebugSample keeps one in N debug records written through
	// WithConnection loggers. Subscribe and unsubscribe traffic dominates
	// debug output on busy nodes. 0 and 1 keep every record.
	ConnectionDebugSample uint32
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	global     atomic.Pointer[zerolog.Logger]
	connSample atomic.Uint32
)

//nolint:gochecknoinits // packages log before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. It may be called more than once.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	}

	logCtx := zerolog.New(out).With()
	if cfg.Timestamp {
		logCtx = logCtx.Timestamp()
	}
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}
	if cfg.NodeID != "" {
		logCtx = logCtx.Str("node_id", cfg.NodeID)
	}

	SetLogger(logCtx.Logger())
	connSample.Store(cfg.ConnectionDebugSample)
}

// parseLevel accepts zerolog level names plus "warning". Anything else,
// including the empty string, is info.
func parseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetLevelString changes the global level, for config reloads.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// SetLogger replaces the global logger, keeping the current level and
// sampling settings.
//
//nolint:gocritic // zerolog.Logger is passed by value
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}

// With starts a child logger context from the global logger.
func With() zerolog.Context { return global.Load().With() }

func Debug() *zerolog.Event { return global.Load().Debug() }

// Info starts an info record.
//
//	logging.Info().Int("connections", n).Msg("connection manager stopped")
func Info() *zerolog.Event { return global.Load().Info() }

func Warn() *zerolog.Event { return global.Load().Warn() }

func Error() *zerolog.Event { return global.Load().Error() }

// Fatal exits the process with status 1 once the record is written.
func Fatal() *zerolog.Event { return global.Load().Fatal() }

// Err starts an error record carrying err, or an info record when err is nil.
func Err(err error) *zerolog.Event { return global.Load().Err(err) }
