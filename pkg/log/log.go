// Package log provides gbdt's structured logging, a thin named-component
// wrapper over github.com/rs/zerolog matching the calling convention the
// rest of the tree uses: log.GetLoggerWithName("boosting.gbdt").Info(msg, kv...).
package log

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	base     zerolog.Logger
	baseOnce sync.Once
	level    = zerolog.InfoLevel
)

func rootLogger() zerolog.Logger {
	baseOnce.Do(func() {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(level).
			With().Timestamp().Logger()
	})
	return base
}

// SetLevel adjusts the global verbosity. No config or CLI key calls it.
func SetLevel(l zerolog.Level) {
	level = l
	base = rootLogger().Level(l)
}

// Logger is a named component logger with key-value structured fields.
type Logger struct {
	name string
	z    zerolog.Logger
}

// GetLoggerWithName returns a Logger scoped to a component name, e.g.
// "boosting.gbdt" or "learner.serial".
func GetLoggerWithName(name string) Logger {
	return Logger{name: name, z: rootLogger().With().Str("component", name).Logger()}
}

func (l Logger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (l Logger) Debug(msg string, kv ...interface{}) { l.event(l.z.Debug(), msg, kv) }
func (l Logger) Info(msg string, kv ...interface{})  { l.event(l.z.Info(), msg, kv) }
func (l Logger) Warn(msg string, kv ...interface{})  { l.event(l.z.Warn(), msg, kv) }
func (l Logger) Error(msg string, kv ...interface{}) { l.event(l.z.Error(), msg, kv) }
