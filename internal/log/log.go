// Package log configures the process-wide logrus logger used by pkg/ai's
// package-level loggers. None of the example repos that import logrus
// customize it beyond the package default, so Setup only wires the two
// knobs codeconcat-ai actually needs: level via CODECONCAT_LOG_LEVEL and a
// plain-text vs. JSON switch via CODECONCAT_LOG_FORMAT, for machine-
// readable logs when this runs in CI.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup applies environment-driven level and formatter configuration to
// logrus's standard logger. Call once from main.
func Setup() {
	level, err := logrus.ParseLevel(os.Getenv("CODECONCAT_LOG_LEVEL"))
	if err != nil {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)

	if os.Getenv("CODECONCAT_LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
