// Package config loads the agent configuration from built-in defaults, an
// optional YAML file and TREZOR_AGENT_ environment variables.
package config

import (
	"github.com/Quaternioneer/trezor-agent/internal/audit"
)

// Supported signing backends.
const (
	BackendPKCS11   = "pkcs11"
	BackendEmulator = "emulator"
)

// Server is the full daemon configuration.
type Server struct {
	SocketPath string     `mapstructure:"socket_path"`
	Keyring    Keyring    `mapstructure:"keyring"`
	Device     Device     `mapstructure:"device"`
	Management Management `mapstructure:"management"`
	Audit      Audit      `mapstructure:"audit"`
	Log        Log        `mapstructure:"log"`
}

// Keyring locates the exported public key the agent signs for.
type Keyring struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
}

// Device selects and configures the signing backend.
type Device struct {
	Backend string `mapstructure:"backend"`
	PKCS11  PKCS11 `mapstructure:"pkcs11"`
}

// PKCS11 configures the PKCS#11 backend.
type PKCS11 struct {
	Library string `mapstructure:"library"`
	Slot    uint   `mapstructure:"slot"`
	PIN     string `mapstructure:"pin"`
}

// Management configures the optional HTTP management endpoint. An empty
// listen address disables it.
type Management struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// Audit configures the audit trail. An empty path disables it.
type Audit struct {
	audit.Config `mapstructure:",squash"`
}

// Log configures daemon logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}
