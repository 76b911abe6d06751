// Package logctx attaches a structured logger to a context.Context, so
// components can log with consistent fields (product_id, build_id,
// depot_id, generation) without threading a logger value through every
// function signature.
//
// Modeled on distribution's internal/dcontext logger: a context key holding
// a *logrus.Entry, with WithLogger/GetLogger accessors and a package-level
// fallback when no logger has been attached.
package logctx

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFields returns a context whose logger (the attached one, or the
// default) has the given fields merged in.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

// GetLogger returns the logger attached to ctx, or the package default.
func GetLogger(ctx context.Context) *logrus.Entry {
	if v := ctx.Value(loggerKey{}); v != nil {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}

	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the package-level fallback logger, used by the
// CLI entrypoint once it has parsed --log-level/--log-format.
func SetDefaultLogger(entry *logrus.Entry) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = entry
}
