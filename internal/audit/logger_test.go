package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quaternioneer/trezor-agent/internal/audit"
)

func TestLogEventWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	logger := audit.NewWriterLogger(&buf, time2.NewMockClock(now))

	err := logger.LogEvent(context.Background(), &audit.Event{
		EventType: audit.EventSignature,
		SessionID: "session-1",
		Keygrip:   "deadbeef",
		Result:    audit.ResultSuccess,
	})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, audit.EventSignature, entry["event_type"])
	assert.Equal(t, "session-1", entry["session_id"])
	assert.Equal(t, "deadbeef", entry["keygrip"])
	assert.Equal(t, audit.ResultSuccess, entry["result"])
	assert.NotEmpty(t, entry["event_id"], "event id is generated when unset")
	assert.NotEmpty(t, entry["timestamp"], "timestamp defaults to the clock")
}

func TestLogEventKeepsExplicitFields(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewWriterLogger(&buf, time2.NewMockClock(time.Now()))

	err := logger.LogEvent(context.Background(), &audit.Event{
		EventID:   "fixed-id",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EventType: audit.EventSessionStarted,
	})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "fixed-id", entry["event_id"])
}

func TestNopLogger(t *testing.T) {
	logger := audit.NewNopLogger()
	require.NoError(t, logger.LogEvent(context.Background(), &audit.Event{EventType: audit.EventSessionClosed}))
}
