package util

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogFromContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	LogFromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
}

func TestLogFromContextWithoutLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		LogFromContext(context.Background()).Debug().Msg("discarded")
	})
}
