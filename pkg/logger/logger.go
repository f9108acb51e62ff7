package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log  zerolog.Logger
	once sync.Once
)

// Init configures the global logger. Level is one of debug, info, warn,
// error; anything else falls back to info. JSON output goes to stderr
// unless pretty is set, in which case a console writer is used.
func Init(level string, pretty bool) {
	once.Do(func() {
		lvl := parseLevel(level)
		var out zerolog.Logger
		if pretty {
			out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		} else {
			out = zerolog.New(os.Stderr)
		}
		log = out.Level(lvl).With().Timestamp().Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func withFields(ev *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	ev = ev.Str("component", component)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

// InfoC logs an info message tagged with a component.
func InfoC(component, msg string) {
	InfoCF(component, msg, nil)
}

// InfoCF logs an info message with a component tag and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	withFields(log.Info(), component, fields).Msg(msg)
}

// WarnC logs a warning tagged with a component.
func WarnC(component, msg string) {
	WarnCF(component, msg, nil)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	withFields(log.Debug(), component, fields).Msg(msg)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	withFields(log.Warn(), component, fields).Msg(msg)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	withFields(log.Error(), component, fields).Msg(msg)
}
