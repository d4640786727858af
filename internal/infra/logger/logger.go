// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"notification_mailer/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// New builds a logger based on application configuration. A nil out means stdout.
func New(cfg *config.AppConfig, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	return NewWithOutput(cfg.LogLevel, cfg.Environment, out)
}

// NewWithOutput builds a logger writing to out.
func NewWithOutput(logLevel, environment string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	// Set Log Level
	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", logLevel, err)
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(level)
	}

	// Set Log Formatter
	switch strings.ToLower(environment) {
	case "production", "staging":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.Debugf("Log level set to: %s", log.GetLevel().String())
	log.Debugf("Log format set for environment: %s", environment)
	return log
}
