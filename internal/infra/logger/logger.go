// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"equb_tracker/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is shared by every component; services get their own entry through Component.
var Log = logrus.New()

// Init applies LOG_LEVEL and ENVIRONMENT to Log and writes to stdout.
func Init(cfg *config.AppConfig) {
	configure(Log, os.Stdout, cfg)
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Debug("Logger configured")
}

// configure uses JSON in production and staging and coloured text elsewhere.
func configure(l *logrus.Logger, out io.Writer, cfg *config.AppConfig) {
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		l.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetLevel(level)
	}

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}
}

// Component tags entries with the emitting part of the app, e.g. "reminder_service".
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
