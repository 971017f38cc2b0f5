// Package contextkeys defines the context keys shared across packages
package contextkeys

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey holds the request ID string.
	// Set by httputil.RequestIDMiddleware.
	RequestIDKey Key = "request_id"

	// LoggerKey holds a *logrus.Entry scoped to the request.
	// Set by httputil.LoggingMiddleware.
	LoggerKey Key = "logger"
)

// RequestID returns the request ID stored in ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithLogger stores a request scoped logger in ctx
func WithLogger(ctx context.Context, log *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, log)
}

// Logger returns the logger stored in ctx, or an entry of fallback
func Logger(ctx context.Context, fallback *logrus.Logger) *logrus.Entry {
	if log, ok := ctx.Value(LoggerKey).(*logrus.Entry); ok {
		return log
	}
	return logrus.NewEntry(fallback)
}
