package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu     sync.RWMutex
	logger *logrus.Logger
)

// Init configures the shared logger. format is "json" or "text"; output is
// "stdout", "stderr" or "file" (with file set).
func Init(level, format, output, file string) error {
	l := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(logLevel)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	switch {
	case output == "file" && file != "":
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		l.SetOutput(f)
	case output == "stderr":
		l.SetOutput(os.Stderr)
	default:
		l.SetOutput(os.Stdout)
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// Get returns the shared logger, initialising it with defaults if needed.
func Get() *logrus.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	_ = Init("info", "text", "stdout", "")
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Get().WithField("component", component)
}
