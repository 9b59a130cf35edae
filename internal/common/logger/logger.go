package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a service-scoped structured logger. Every entry carries the
// service name, the hostname and an action tag.
type Logger struct{ zl zerolog.Logger }

func New(service string) *Logger {
	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname()).
		Logger()
	return &Logger{zl: zl}
}

// SetLevel applies a global level: debug, info, warn or error.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (l *Logger) log(ev *zerolog.Event, action string, fields map[string]any) {
	ev = ev.Str("action", action)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(action)
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(l.zl.Info(), action, fields) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(l.zl.Debug(), action, fields) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(l.zl.Warn(), action, fields) }

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(l.zl.Error().Err(err), action, fields)
}

func hostname() string { h, _ := os.Hostname(); return h }
