package agent

import (
	"fmt"

	"github.com/dropbox/godropbox/time2"
	"github.com/rs/zerolog/log"

	"github.com/Quaternioneer/trezor-agent/internal/audit"
	"github.com/Quaternioneer/trezor-agent/internal/config"
	"github.com/Quaternioneer/trezor-agent/internal/device"
	"github.com/Quaternioneer/trezor-agent/internal/device/emulator"
	"github.com/Quaternioneer/trezor-agent/internal/device/pkcs11hsm"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

// PROVIDERS - construction of the server components from configuration, kept
// in one place so wire can assemble the graph (see wire.go).

// NewRegistry creates the key registry.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewRegistry(cfg config.Server) keyring.Registry {
	return keyring.NewFileRegistry(cfg.Keyring.PublicKeyPath)
}

// NewBackend creates the signing backend based on configuration.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewBackend(cfg config.Server) (device.Backend, error) {
	switch cfg.Device.Backend {
	case config.BackendPKCS11:
		return pkcs11hsm.New(cfg.Device.PKCS11.Library, cfg.Device.PKCS11.Slot, cfg.Device.PKCS11.PIN)
	case config.BackendEmulator:
		log.Warn().Msg("Using emulated signing backend, keys are held in process memory")
		return emulator.New()
	default:
		return nil, fmt.Errorf("unsupported signing backend: %s", cfg.Device.Backend)
	}
}

// NewClock provides the audit logger's time source.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewClock() time2.Clock {
	return time2.DefaultClock
}

// NewAuditLogger creates the audit logger, or a no-op one when auditing is
// not configured.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewAuditLogger(cfg config.Server, clock time2.Clock) (audit.Logger, error) {
	if cfg.Audit.Path == "" {
		return audit.NewNopLogger(), nil
	}
	return audit.NewLogger(cfg.Audit.Config, clock)
}
