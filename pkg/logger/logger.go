package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the shared structured logger. Output is JSON so log
// shippers on the terminal hosts can parse it.
func NewLogger(level string) *logrus.Logger {
	logg := logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logg.SetLevel(lvl)

	return logg
}
