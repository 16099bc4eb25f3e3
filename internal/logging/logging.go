// Package logging builds the process logger and adapts it to the small
// Logger interfaces used by the shared packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to out at the given level. An
// unknown level falls back to info.
func New(out io.Writer, level string) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

// Adapter exposes a zerolog.Logger through Info/Error/Debug with
// alternating key/value fields.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter wraps logger, tagging every entry with component.
func NewAdapter(logger zerolog.Logger, component string) *Adapter {
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, fields ...interface{}) {
	withFields(a.logger.Info(), fields).Msg(msg)
}

func (a *Adapter) Error(msg string, fields ...interface{}) {
	withFields(a.logger.Error(), fields).Msg(msg)
}

func (a *Adapter) Debug(msg string, fields ...interface{}) {
	withFields(a.logger.Debug(), fields).Msg(msg)
}

func withFields(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	if e == nil {
		return e
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		if i+1 >= len(fields) {
			e = e.Interface(key, nil)
			break
		}
		switch v := fields[i+1].(type) {
		case error:
			if key == "error" {
				e = e.Err(v)
			} else {
				e = e.AnErr(key, v)
			}
		case time.Duration:
			e = e.Dur(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
