package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so packages and tests can log without setup.
var Log = logrus.New()

// Init configures Log from LOG_LEVEL and LOG_FORMAT ("json" or "text") and
// stamps every entry with the process name.
func Init(service string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)

	if service != "" {
		Log.AddHook(serviceHook{service: service})
	}
}

type serviceHook struct {
	service string
}

func (serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
