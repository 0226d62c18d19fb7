// Package logger builds the logrus loggers shared by every layer of the engine.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	baseOnce sync.Once
	base     *logrus.Logger
)

// NewLogger returns the process-wide logrus logger. Level and format are read
// once from LOG_LEVEL and LOG_FORMAT.
func NewLogger() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stdout)
		base.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
		if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
			base.SetFormatter(&logrus.JSONFormatter{})
		} else {
			base.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
		}
	})
	return base
}

// SetLevel changes the level of the shared logger at runtime (CLI --verbose).
func SetLevel(level string) {
	NewLogger().SetLevel(parseLevel(level))
}

func parseLevel(level string) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
