// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler writes slog records through zerolog. suture reports service
// restarts, backoff and shutdown timeouts through sutureslog, which only
// accepts a *slog.Logger.
//
// Attributes bound with WithAttrs are folded into the zerolog context once;
// groups become dotted key prefixes ("supervisor.service").
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogHandlerWithLogger wraps logger.
//
//nolint:gocritic // zerolog.Logger is passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns an slog.Logger over the global logger, tagged as the
// supervisor component.
//
//	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg)
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandlerWithLogger(WithComponent("supervisor")))
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerologLevel(level) >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Handler passes the record by value
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))
	record.Attrs(func(attr slog.Attr) bool {
		event = appendAttr(event, h.prefix, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	logCtx := h.logger.With()
	for _, attr := range attrs {
		logCtx = bindAttr(logCtx, h.prefix, attr)
	}
	return &SlogHandler{logger: logCtx.Logger(), prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// appendAttr adds attr to a single record. Error values go to the standard
// error field when they are not grouped.
func appendAttr(event *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return event
	}
	key := prefix + attr.Key
	v := attr.Value

	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			event = appendAttr(event, groupPrefix(prefix, attr.Key), ga)
		}
		return event
	case slog.KindString:
		return event.Str(key, v.String())
	case slog.KindInt64:
		return event.Int64(key, v.Int64())
	case slog.KindUint64:
		return event.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, v.Float64())
	case slog.KindBool:
		return event.Bool(key, v.Bool())
	case slog.KindDuration:
		return event.Dur(key, v.Duration())
	case slog.KindTime:
		return event.Time(key, v.Time())
	}

	if err, ok := v.Any().(error); ok {
		if prefix == "" {
			return event.Err(err)
		}
		return event.AnErr(key, err)
	}
	return event.Interface(key, v.Any())
}

// bindAttr is appendAttr for a logger context.
func bindAttr(logCtx zerolog.Context, prefix string, attr slog.Attr) zerolog.Context {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return logCtx
	}
	key := prefix + attr.Key
	v := attr.Value

	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			logCtx = bindAttr(logCtx, groupPrefix(prefix, attr.Key), ga)
		}
		return logCtx
	case slog.KindString:
		return logCtx.Str(key, v.String())
	case slog.KindInt64:
		return logCtx.Int64(key, v.Int64())
	case slog.KindBool:
		return logCtx.Bool(key, v.Bool())
	case slog.KindDuration:
		return logCtx.Dur(key, v.Duration())
	}
	return logCtx.Interface(key, v.Any())
}

// groupPrefix extends prefix with an inline group name. Unnamed groups are
// inlined.
func groupPrefix(prefix, name string) string {
	if name == "" {
		return prefix
	}
	return prefix + name + "."
}

// slogToZerologLevel maps slog's open-ended levels onto zerolog's. Levels
// above error stay at error so suture output never triggers Fatal.
func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
