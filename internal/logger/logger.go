package logger

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Logger interface is used to allow tests to inject custom loggers.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	WithField(key string, value interface{}) Logger
	Writer() io.Writer
	SetWriter(io.Writer)
}

type logger struct {
	*log.Entry
}

// NewLogger returns a new Logger instance backed by Logrus.
func NewLogger(level uint32) Logger {
	l := log.New()
	l.SetLevel(log.Level(level))
	l.Formatter = &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	return &logger{log.NewEntry(l)}
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	l := NewLogger(uint32(log.PanicLevel))
	l.SetWriter(io.Discard)
	return l
}

// OrDiscard returns l, or a discarding Logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{l.Entry.WithField(key, value)}
}

func (l *logger) Writer() io.Writer {
	return l.Logger.Out
}

func (l *logger) SetWriter(writer io.Writer) {
	l.Logger.Out = writer
}

// GetLogLevel converts the level string to its corresponding int value. It
// returns an error if the level is invalid.
func GetLogLevel(level string) (uint32, error) {
	var l uint32
	switch strings.ToLower(level) {
	case "debug":
		l = uint32(log.DebugLevel)
	case "info", "":
		l = uint32(log.InfoLevel)
	case "warn":
		l = uint32(log.WarnLevel)
	case "error":
		l = uint32(log.ErrorLevel)
	default:
		return 0, errors.Errorf("invalid log.level setting %q", level)
	}
	return l, nil
}
