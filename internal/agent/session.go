// Package agent implements the GPG-agent emulation: the per-connection
// Assuan state machine and the unix-socket server that drives it.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Quaternioneer/trezor-agent/internal/assuan"
	"github.com/Quaternioneer/trezor-agent/internal/audit"
	"github.com/Quaternioneer/trezor-agent/internal/device"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

const (
	// protocolVersion is what GETINFO reports. GnuPG clients use it for
	// feature gating.
	protocolVersion = "2.1.11"

	// agentID is the product identifier returned for AGENT_ID.
	agentID = "TREZOR"

	// hashAlgoSHA256 is the id GnuPG sends in SETHASH for SHA-256, the only
	// digest algorithm the signing flow supports.
	hashAlgoSHA256 = "8"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrBadArguments    = errors.New("wrong number of arguments")
	ErrUnsupportedAlgo = errors.New("unsupported hash algorithm")
	ErrNoDigest        = errors.New("no digest staged for signing")
	ErrNoKeygrip       = errors.New("no keygrip staged for signing")
	ErrKeygripMismatch = errors.New("keygrip does not match the exported key")
)

// Session is the per-connection Assuan state machine. It is owned by exactly
// one connection goroutine and never shared; all state dies with the
// connection.
type Session struct {
	id       string
	registry keyring.Registry
	backend  device.Backend
	audit    audit.Logger
	log      zerolog.Logger

	// staged by SIGKEY / SETHASH for the next PKSIGN, kept as the opaque
	// tokens the client sent
	keygrip string
	algo    string
	digest  string
}

// NewSession creates the state machine for one accepted connection.
func NewSession(registry keyring.Registry, backend device.Backend, auditLogger audit.Logger, log zerolog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		registry: registry,
		backend:  backend,
		audit:    auditLogger,
		log:      log.With().Str("session_id", id).Logger(),
	}
}

// Run drives one connection: greeting first, then a strict read-dispatch-reply
// cycle until the client disconnects (nil) or a protocol violation or signing
// fault terminates the session (non-nil).
func (s *Session) Run(ctx context.Context, conn io.ReadWriter) error {
	if _, err := io.WriteString(conn, "OK\n"); err != nil {
		return errors.Wrap(err, "failed to send greeting")
	}

	_ = s.audit.LogEvent(ctx, &audit.Event{
		EventType: audit.EventSessionStarted,
		SessionID: s.id,
		Result:    audit.ResultSuccess,
	})
	defer func() {
		_ = s.audit.LogEvent(ctx, &audit.Event{
			EventType: audit.EventSessionClosed,
			SessionID: s.id,
			Result:    audit.ResultSuccess,
		})
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// client went away, normal end of session
				return nil
			}
			return errors.Wrap(err, "failed to read command line")
		}

		if err := s.handle(ctx, conn, strings.TrimRight(line, "\r\n")); err != nil {
			return err
		}
	}
}

// handle dispatches a single command line. A returned error terminates the
// session without a reply, per the protocol's fail-closed contract. Every
// successfully handled command ends with exactly one OK status line.
func (s *Session) handle(ctx context.Context, w io.Writer, line string) error {
	parts := strings.Split(line, " ")
	command, args := parts[0], parts[1:]

	switch command {
	case "RESET", "OPTION", "HAVEKEY", "SETKEYDESC":
		// acknowledged no-ops

	case "GETINFO":
		if err := writeData(w, protocolVersion+"\n"); err != nil {
			return err
		}

	case "AGENT_ID":
		if err := writeData(w, agentID+"\n"); err != nil {
			return err
		}

	case "SIGKEY":
		if len(args) != 1 {
			return errors.Wrapf(ErrBadArguments, "SIGKEY takes one keygrip, got %d arguments", len(args))
		}
		s.keygrip = args[0]

	case "SETHASH":
		if len(args) != 2 {
			return errors.Wrapf(ErrBadArguments, "SETHASH takes an algorithm and a digest, got %d arguments", len(args))
		}
		s.algo, s.digest = args[0], args[1]

	case "PKSIGN":
		sig, err := s.sign(ctx)
		if err != nil {
			_ = s.audit.LogEvent(ctx, &audit.Event{
				EventType: audit.EventSignature,
				SessionID: s.id,
				Keygrip:   s.keygrip,
				Result:    audit.ResultFailure,
				Details:   err.Error(),
			})
			return err
		}
		_ = s.audit.LogEvent(ctx, &audit.Event{
			EventType: audit.EventSignature,
			SessionID: s.id,
			Keygrip:   s.keygrip,
			Result:    audit.ResultSuccess,
		})
		if err := writeData(w, sig); err != nil {
			return err
		}

	default:
		s.log.Error().Str("line", line).Msg("Unknown request")
		_ = s.audit.LogEvent(ctx, &audit.Event{
			EventType: audit.EventProtocolViolation,
			SessionID: s.id,
			Command:   command,
			Result:    audit.ResultFailure,
		})
		return errors.Wrapf(ErrUnknownCommand, "%q", command)
	}

	if _, err := io.WriteString(w, "OK\n"); err != nil {
		return errors.Wrap(err, "failed to send status")
	}
	return nil
}

// sign performs the staged PKSIGN operation: validate the staged algorithm,
// resolve the key for the registry's default identity, check it against the
// staged keygrip, and sign the staged digest on the backend.
func (s *Session) sign(ctx context.Context) (string, error) {
	if s.algo != hashAlgoSHA256 {
		return "", errors.Wrapf(ErrUnsupportedAlgo, "algorithm id %q", s.algo)
	}
	if s.digest == "" {
		return "", ErrNoDigest
	}
	if s.keygrip == "" {
		return "", ErrNoKeygrip
	}

	keygrip, err := hex.DecodeString(s.keygrip)
	if err != nil {
		return "", errors.Wrap(err, "invalid keygrip encoding")
	}
	digest, err := hex.DecodeString(s.digest)
	if err != nil {
		return "", errors.Wrap(err, "invalid digest encoding")
	}

	// The key is resolved for the default identity; the staged keygrip is
	// only checked against the result afterwards.
	pub, err := s.registry.ExportPublicKey(ctx, "")
	if err != nil {
		return "", errors.Wrap(err, "failed to export public key")
	}
	if !bytes.Equal(pub.Keygrip, keygrip) {
		return "", errors.Wrapf(ErrKeygripMismatch, "requested %x, exported %x", keygrip, pub.Keygrip)
	}

	signer, err := s.backend.OpenSigningSession(ctx, pub)
	if err != nil {
		return "", errors.Wrap(err, "failed to open signing session")
	}
	defer func() { _ = signer.Release() }()

	r, sv, err := signer.Sign(ctx, digest)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign digest")
	}

	return assuan.EncodeSignature(r, sv), nil
}

// writeData emits a data line. The payload must already be escaped where
// needed and carry its own trailing newline.
func writeData(w io.Writer, payload string) error {
	if _, err := io.WriteString(w, "D "+payload); err != nil {
		return errors.Wrap(err, "failed to send data line")
	}
	return nil
}
