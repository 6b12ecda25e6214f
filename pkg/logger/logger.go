// Package logger provides the structured logger shared by all services.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger tagged with the owning component name.
type Logger struct {
	mu        sync.Mutex
	component string
	zl        zerolog.Logger
}

// NewDefault returns a logger writing human-readable output to stderr.
func NewDefault(component string) *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	zl := zerolog.New(out).With().Timestamp().Str("component", component).Logger()
	return &Logger{component: component, zl: zl}
}

// New returns a JSON logger writing to w at the given level.
func New(component string, w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &Logger{component: component, zl: zl}
}

// SetOutput redirects log output, primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Output(w)
}

// With returns a child logger carrying an extra key/value pair.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{component: l.component, zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.zl.Error(), msg, args) }

func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// emit attaches trailing key/value pairs to the event. Odd trailing values are
// logged under the "extra" key rather than dropped.
func (l *Logger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			ev = ev.Interface("extra", args[i:])
			ev.Msg(msg)
			return
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("extra", args[len(args)-1])
	}
	ev.Msg(msg)
}
