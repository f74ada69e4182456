// Package logger provides a wrapper around logrus for structured logging.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log encodings
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger creates a stdout logger. JSON is used when the ENVIRONMENT
// variable is production.
func NewLogger(logLevel string) *logrus.Logger {
	return NewEnvironmentLogger(os.Getenv("ENVIRONMENT"), logLevel)
}

// NewEnvironmentLogger creates a stdout logger for an application environment
func NewEnvironmentLogger(environment, logLevel string) *logrus.Logger {
	format := FormatText
	if environment == "production" {
		format = FormatJSON
	}
	return New(os.Stdout, logLevel, format)
}

// New creates a logger writing to out in the given format. An unknown level
// falls back to info.
func New(out io.Writer, logLevel, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if format == FormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   out == os.Stdout,
		})
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.WithField("log_level", logLevel).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
