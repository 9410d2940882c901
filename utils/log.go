package utils

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled, printf-style logging surface used across the
// module. Keeping it an interface decouples callers from the logging
// library.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Critical(msg string, args ...any)
	Close() error
}

var _ Logger = (*logrusLogger)(nil)

type logrusLogger struct {
	l    *logrus.Logger
	file *os.File
}

// NewLogger builds a logrus-backed Logger at the given level ("trace",
// "debug", "info", "warn", "error"). If filePath is non-empty, output goes
// to both stdout and the file.
func NewLogger(level, filePath string) (Logger, error) {
	l := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000000",
	})

	var file *os.File
	if filePath != "" {
		file, err = os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.SetOutput(io.MultiWriter(os.Stdout, file))
	} else {
		l.SetOutput(os.Stdout)
	}

	return &logrusLogger{l: l, file: file}, nil
}

func (g *logrusLogger) Trace(msg string, args ...any) { g.l.Tracef(msg, args...) }
func (g *logrusLogger) Debug(msg string, args ...any) { g.l.Debugf(msg, args...) }
func (g *logrusLogger) Info(msg string, args ...any)  { g.l.Infof(msg, args...) }
func (g *logrusLogger) Warn(msg string, args ...any)  { g.l.Warnf(msg, args...) }
func (g *logrusLogger) Error(msg string, args ...any) { g.l.Errorf(msg, args...) }

// Critical logs at error level with a marker; it does not exit, the caller
// decides how to die.
func (g *logrusLogger) Critical(msg string, args ...any) {
	g.l.Errorf("CRITICAL: "+msg, args...)
}

func (g *logrusLogger) Close() error {
	if g.file != nil {
		return g.file.Close()
	}
	return nil
}
