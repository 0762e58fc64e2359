// Package logging is the structured logger every component receives by
// injection, backed by zap.
package logging

import "context"

// Logger takes a message plus alternating keys and values:
//
//	log.Warn(ctx, "refresh failed", "error", err, "attempt", n)
//
// Never pass token values as fields.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger
}
