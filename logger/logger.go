package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before Init is
// called and defaults to text output at info level.
var Log = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init configures the level and output format ("text" or "json").
func Init(level, format string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	Log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q: want text or json", format)
	}

	Log.WithFields(logrus.Fields{"level": lvl.String(), "format": format}).Debug("Structured logging initialized")
	return nil
}

// SetOutput redirects log output, mainly for tests and the CLI.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// With returns an entry built from alternating key/value pairs.
func With(args ...any) *logrus.Entry {
	return Log.WithFields(fieldsFrom(args))
}

func Info(msg string, args ...any) {
	Log.WithFields(fieldsFrom(args)).Info(msg)
}

func Error(msg string, args ...any) {
	Log.WithFields(fieldsFrom(args)).Error(msg)
}

func Debug(msg string, args ...any) {
	Log.WithFields(fieldsFrom(args)).Debug(msg)
}

func Warn(msg string, args ...any) {
	Log.WithFields(fieldsFrom(args)).Warn(msg)
}

// fieldsFrom turns key/value pairs into logrus fields. A trailing key with
// no value is kept under "!BADKEY", the same convention log/slog uses.
func fieldsFrom(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			fields["!BADKEY"] = key
			break
		}
		fields[key] = args[i+1]
	}
	return fields
}
