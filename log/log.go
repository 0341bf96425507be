// Package log provides the process-wide structured logger used across the
// sipwire packages, built on top of log/slog.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang-cz/devslog"
	console "github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"
)

var newHandler = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
)

func newDefault() *slog.Logger {
	return slog.New(newHandler(
		console.NewHandler(os.Stderr, &console.HandlerOptions{
			AddSource:  true,
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339,
		}),
	))
}

func newDev() *slog.Logger {
	return slog.New(newHandler(
		devslog.NewHandler(os.Stderr, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				AddSource: true,
				Level:     slog.LevelDebug,
			},
			SortKeys:   true,
			TimeFormat: time.RFC3339,
		}),
	))
}

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h noopHandler) WithGroup(string) slog.Handler            { return h }

var noop = slog.New(noopHandler{})

// Noop returns a logger that discards everything it is given.
// Tests that assert on behavior rather than log content use this.
func Noop() *slog.Logger { return noop }

var def atomic.Pointer[slog.Logger]

// Default returns the process-wide logger. It is built lazily on first use
// from a console handler, unless SetDefault has installed another one.
func Default() *slog.Logger {
	if l := def.Load(); l != nil {
		return l
	}
	l := newDefault()
	def.CompareAndSwap(nil, l)
	return def.Load()
}

// Dev returns a development-mode logger with pretty multi-line output.
func Dev() *slog.Logger { return newDev() }

// SetDefault installs logger as the process-wide default returned by Default.
// Tests use this to capture output or install log.Noop().
func SetDefault(logger *slog.Logger) {
	if logger == nil {
		logger = newDefault()
	}
	def.Store(logger)
}

// OrDefault returns logger, or Default() when logger is nil.
// Component constructors use this to normalize an optional *slog.Logger option.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Default()
	}
	return logger
}

// fmtValue formats v using '%+v' when LogValue is called, avoiding an eager
// String() call on values that are expensive to render and filtered out by
// the handler's level check.
type fmtValue struct{ v any }

func (v fmtValue) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%+v", v.v))
}

// FmtValue returns a lazily-rendered slog.LogValuer for v.
func FmtValue(v any) slog.LogValuer { return fmtValue{v} }
