package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger and installs it as the fallback for
// contexts that carry no request logger.
func New(level, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}

// WithRequestID returns ctx carrying a child of the context logger tagged
// with rid.
func WithRequestID(ctx context.Context, rid string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("request_id", rid).Logger()
	return l.WithContext(ctx)
}

// Logger provides structured logging for services
type Logger struct {
	zl *zerolog.Logger
}

// FromContext returns the request-scoped logger attached by the request id
// middleware.
func FromContext(ctx context.Context) *Logger {
	return &Logger{zl: zerolog.Ctx(ctx)}
}

// Zerolog exposes the underlying logger for call sites that need fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return l.zl
}

func (l *Logger) LogError(operation string, err error) {
	l.zl.Error().Str("operation", operation).Err(err).Send()
}

func (l *Logger) LogErrorf(operation string, format string, args ...interface{}) {
	l.zl.Error().Str("operation", operation).Msgf(format, args...)
}

func (l *Logger) LogInfo(operation string, message string) {
	l.zl.Info().Str("operation", operation).Msg(message)
}

func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	l.zl.Info().Str("operation", operation).Msgf(format, args...)
}

func (l *Logger) LogWarn(operation string, message string) {
	l.zl.Warn().Str("operation", operation).Msg(message)
}

func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	l.zl.Warn().Str("operation", operation).Msgf(format, args...)
}
