package broadcast

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// loggerAdapter bridges watermill's logging interface onto slog so transport
// internals share the daemon's log stream.
type loggerAdapter struct {
	logger *slog.Logger
}

func newLoggerAdapter(logger *slog.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(fieldsToAttrs(fields), slog.Any("error", err))...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, fieldsToAttrs(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, fieldsToAttrs(fields)...)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, fieldsToAttrs(fields)...)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: a.logger.With(fieldsToAttrs(fields)...)}
}

func fieldsToAttrs(fields watermill.LogFields) []any {
	attrs := make([]any, 0, len(fields))
	for key, value := range fields {
		attrs = append(attrs, slog.Any(key, value))
	}
	return attrs
}
