package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// newViperInstance creates a Viper instance with the agent's defaults,
// environment prefix (TREZOR_AGENT_) and key replacer.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TREZOR_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	gnupgHome := filepath.Join(home, ".gnupg")

	v.SetDefault("socket_path", filepath.Join(gnupgHome, "S.gpg-agent"))
	v.SetDefault("keyring.public_key_path", filepath.Join(gnupgHome, "trezor-public-key.asc"))
	v.SetDefault("device.backend", BackendPKCS11)
	v.SetDefault("device.pkcs11.library", "")
	v.SetDefault("device.pkcs11.slot", 0)
	v.SetDefault("device.pkcs11.pin", "")
	v.SetDefault("management.listen_address", "")
	v.SetDefault("audit.path", "")
	v.SetDefault("audit.max_size_mb", 10)
	v.SetDefault("audit.max_backups", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads configuration with the following precedence (highest first):
// environment variables, the config file at path (if given), built-in
// defaults.
func Load(path string) (*Server, error) {
	v := newViperInstance()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func Validate(cfg *Server) error {
	if cfg.SocketPath == "" {
		return errors.New("socket_path must not be empty")
	}

	switch cfg.Device.Backend {
	case BackendPKCS11:
		if cfg.Device.PKCS11.Library == "" {
			return errors.New("device.pkcs11.library is required for the pkcs11 backend")
		}
	case BackendEmulator:
		// no further settings
	default:
		return errors.Errorf("unsupported device backend %q", cfg.Device.Backend)
	}

	return nil
}
