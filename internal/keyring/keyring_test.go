package keyring_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

func TestFileRegistryMissingFile(t *testing.T) {
	registry := keyring.NewFileRegistry(filepath.Join(t.TempDir(), "missing.asc"))

	_, err := registry.ExportPublicKey(context.Background(), "")
	require.Error(t, err)
}

func TestFileRegistryInvalidArmor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.asc")
	require.NoError(t, os.WriteFile(path, []byte("not an armored key"), 0o600))

	registry := keyring.NewFileRegistry(path)

	_, err := registry.ExportPublicKey(context.Background(), "")
	require.Error(t, err)
}
