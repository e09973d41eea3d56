// Package util carries small cross-cutting helpers shared by the agent
// packages.
package util

import (
	"context"

	"github.com/rs/zerolog"
)

// LogFromContext returns the logger attached to ctx, falling back to the
// package default when none is set.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithLogger attaches l to the returned context.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}
