package audit

import "time"

// Event types recorded by the agent.
const (
	EventSessionStarted    = "SessionStarted"
	EventSessionClosed     = "SessionClosed"
	EventSignature         = "Signature"
	EventProtocolViolation = "ProtocolViolation"
)

// Event results.
const (
	ResultSuccess = "Success"
	ResultFailure = "Failure"
)

// Event is one entry of the agent's audit trail.
type Event struct {
	EventID   string
	Timestamp time.Time
	EventType string
	SessionID string
	Keygrip   string
	Command   string
	Result    string
	Details   string
}
