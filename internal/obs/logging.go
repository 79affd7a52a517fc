// Package obs builds the process logger and bridges it to the service
// logging interface.
package obs

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fairtrace/internal/core"
)

// NewLogger returns a logrus logger writing to w at level in the given
// format ("json" or "text").
func NewLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// ServiceLogger adapts a logrus entry to core.Logger. Trailing key/value
// arguments become fields; a dangling key is kept under "arg".
type ServiceLogger struct {
	entry logrus.FieldLogger
}

var _ core.Logger = ServiceLogger{}

// NewServiceLogger wraps l, tagging every entry with component=service.
func NewServiceLogger(l logrus.FieldLogger) ServiceLogger {
	return ServiceLogger{entry: l.WithField("component", "service")}
}

func (s ServiceLogger) Debug(msg string, args ...any) { s.with(args).Debug(msg) }
func (s ServiceLogger) Info(msg string, args ...any)  { s.with(args).Info(msg) }
func (s ServiceLogger) Warn(msg string, args ...any)  { s.with(args).Warn(msg) }
func (s ServiceLogger) Error(msg string, args ...any) { s.with(args).Error(msg) }

func (s ServiceLogger) with(args []any) logrus.FieldLogger {
	if len(args) == 0 {
		return s.entry
	}
	return s.entry.WithFields(Fields(args...))
}

// Fields converts alternating key/value pairs into logrus fields.
func Fields(args ...any) logrus.Fields {
	fields := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			fields["arg"] = args[i]
			break
		}
		fields[key] = args[i+1]
	}
	return fields
}
