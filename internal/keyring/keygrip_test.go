package keyring_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

func generateKey(t *testing.T) *ecdsa.PublicKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &key.PublicKey
}

func TestKeygripDeterministic(t *testing.T) {
	pub := generateKey(t)

	first := keyring.Keygrip(pub)
	second := keyring.Keygrip(pub)

	require.Len(t, first, 20, "keygrip is a SHA-1 digest")
	assert.Equal(t, first, second)
}

func TestKeygripDistinguishesKeys(t *testing.T) {
	a := keyring.Keygrip(generateKey(t))
	b := keyring.Keygrip(generateKey(t))

	assert.NotEqual(t, a, b)
}
