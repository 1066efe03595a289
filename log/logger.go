package log

import (
	"context"

	"github.com/rs/zerolog"
)

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger is the structured logger handed to long-lived components such as
// the HTTP server. Package code that only needs request scope uses
// zerolog's log.Ctx instead.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	With(fields Fields) Logger
	// Zerolog exposes the underlying logger so it can be attached to a request context.
	Zerolog() zerolog.Logger
}
