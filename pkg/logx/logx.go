// Package logx is the structured logging facade for the whole application.
// It keeps a small package-level API and delegates formatting, levels and
// output to zerolog.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var defaultLogger zerolog.Logger

func init() {
	defaultLogger = newLogger(os.Stderr, levelFromEnv())
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func levelFromEnv() zerolog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel sets the log level for the default logger
func SetLevel(level zerolog.Level) {
	defaultLogger = defaultLogger.Level(level)
}

// SetOutput redirects the default logger output
func SetOutput(w io.Writer) {
	defaultLogger = newLogger(w, defaultLogger.GetLevel())
}

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Debug logs a debug level message
func Debug(msg string) { defaultLogger.Debug().Msg(msg) }

// Info logs an info level message
func Info(msg string) { defaultLogger.Info().Msg(msg) }

// Warn logs a warning level message
func Warn(msg string) { defaultLogger.Warn().Msg(msg) }

// Error logs an error level message
func Error(msg string) { defaultLogger.Error().Msg(msg) }

// Fatal logs a fatal level message and exits
func Fatal(msg string) { defaultLogger.Fatal().Msg(msg) }

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debug().Msg(fmt.Sprintf(format, args...))
}

// Infof logs a formatted info message
func Infof(format string, args ...interface{}) {
	defaultLogger.Info().Msg(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warn().Msg(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) {
	defaultLogger.Error().Msg(fmt.Sprintf(format, args...))
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, args ...interface{}) {
	defaultLogger.Fatal().Msg(fmt.Sprintf(format, args...))
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields Fields) *Entry {
	return &Entry{logger: defaultLogger, fields: fields}
}

// WithField returns an entry carrying a single structured field.
func WithField(key string, value interface{}) *Entry {
	return WithFields(Fields{key: value})
}

// WithError returns an entry carrying the error as a field.
func WithError(err error) *Entry {
	return WithFields(Fields{"error": err})
}
