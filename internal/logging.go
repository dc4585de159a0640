package internal

import (
	"os"

	"github.com/sirupsen/logrus"
)

const EnvLogLevel = "LOG_LEVEL"

// NewLogger returns a JSON logger tagged with the service name. The level
// comes from LOG_LEVEL and defaults to info.
func NewLogger(service string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logLevelFromEnv())
	return logger.WithField("service", service)
}

func logLevelFromEnv() logrus.Level {
	switch os.Getenv(EnvLogLevel) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
