// Package zlog adapts zerolog to the Logger interface the engine,
// store, and transport log through.
package zlog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger emits structured records through zerolog.
type Logger struct {
	logger zerolog.Logger
}

// New creates a logger writing JSON records at the given level to out.
// Unknown levels fall back to info.
func New(level string, out io.Writer) *Logger {
	return &Logger{
		logger: zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger(),
	}
}

// NewConsole creates a human-readable logger for CLI use, writing to
// stderr.
func NewConsole(level string, noColor bool) *Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	}

	return &Logger{
		logger: zerolog.New(writer).Level(parseLevel(level)).With().Timestamp().Logger(),
	}
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return parsed
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	event := l.logger.Debug()
	addFields(event, fields)
	event.Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	event := l.logger.Info()
	addFields(event, fields)
	event.Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	event := l.logger.Warn()
	addFields(event, fields)
	event.Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	event := l.logger.Error()
	addFields(event, fields)
	event.Msg(msg)
}

func addFields(event *zerolog.Event, fields map[string]interface{}) {
	for key, value := range fields {
		event.Interface(key, value)
	}
}
