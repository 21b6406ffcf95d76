// Package logger provides the process-wide diagnostic logger used by confine.
//
// Diagnostics always go to stderr so that stdout stays free for the usage
// block the Option Model prints on a parse error.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)

	return l
}

// SetDebug raises the logger to debug level, used when the caller asked for
// verbose diagnostics.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(logrus.DebugLevel)
		return
	}

	log.SetLevel(logrus.InfoLevel)
}

// Debug logs a message at debug level.
func Debug(msg string, fields ...logrus.Fields) {
	log.WithFields(mergeFields(fields)).Debug(msg)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Info logs a message at info level.
func Info(msg string, fields ...logrus.Fields) {
	log.WithFields(mergeFields(fields)).Info(msg)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, fields ...logrus.Fields) {
	log.WithFields(mergeFields(fields)).Warn(msg)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Error logs a message at error level.
func Error(msg string, fields ...logrus.Fields) {
	log.WithFields(mergeFields(fields)).Error(msg)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}

func mergeFields(fields []logrus.Fields) logrus.Fields {
	if len(fields) == 0 {
		return logrus.Fields{}
	}

	return fields[0]
}
