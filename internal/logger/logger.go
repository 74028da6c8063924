package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with the fields this server logs consistently.
type Logger struct {
	*logrus.Logger
}

// New creates a JSON logger writing to stdout.
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput creates a JSON logger writing to w.
func NewWithOutput(level string, w io.Writer) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(w)

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithOutput("panic", io.Discard)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithUserID creates a new logger entry with user ID field
func (l *Logger) WithUserID(userID string) *logrus.Entry {
	return l.Logger.WithField("user_id", userID)
}

// Audit logs a state-changing action performed by actorID on resource.
func (l *Logger) Audit(actorID, action, resource string, success bool, details logrus.Fields) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  actorID,
		"action":   action,
		"resource": resource,
		"success":  success,
	})
	if len(details) > 0 {
		entry = entry.WithFields(details)
	}

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}
