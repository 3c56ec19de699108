package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// Set output untuk InfoLogger ke stdout
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Set output untuk ErrorLogger ke stderr
	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}

// ConfigureLogger applies LOG_FORMAT / LOG_LEVEL style settings on top of InitLogger.
func ConfigureLogger(format, level string) {
	if InfoLogger == nil || ErrorLogger == nil {
		InitLogger()
	}

	if strings.EqualFold(format, "json") {
		InfoLogger.SetFormatter(&logrus.JSONFormatter{})
		ErrorLogger.SetFormatter(&logrus.JSONFormatter{})
	}

	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		ErrorLogger.Warnf("unknown log level %q, keeping %s", level, InfoLogger.GetLevel())
		return
	}
	InfoLogger.SetLevel(lvl)
}

// Logger returns the info logger, initialising the pair on first use so that
// packages used outside main (tests, cli) never hit a nil logger.
func Logger() *logrus.Logger {
	if InfoLogger == nil || ErrorLogger == nil {
		InitLogger()
	}
	return InfoLogger
}

// ErrLogger is the stderr counterpart of Logger.
func ErrLogger() *logrus.Logger {
	if InfoLogger == nil || ErrorLogger == nil {
		InitLogger()
	}
	return ErrorLogger
}
