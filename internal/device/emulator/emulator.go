// Package emulator provides an in-process P-256 signer for development and
// tests, where no PKCS#11 module or hardware token is available.
package emulator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"

	"github.com/Quaternioneer/trezor-agent/internal/device"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

// Backend signs with a key held in process memory.
type Backend struct {
	key *ecdsa.PrivateKey
}

// New creates an emulated backend with a freshly generated P-256 key.
func New() (*Backend, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate emulator key")
	}
	return &Backend{key: key}, nil
}

// NewWithKey creates an emulated backend around an existing key.
func NewWithKey(key *ecdsa.PrivateKey) *Backend {
	return &Backend{key: key}
}

// PublicKey exposes the emulated key so callers can build a matching
// keyring entry.
func (b *Backend) PublicKey() *ecdsa.PublicKey {
	return &b.key.PublicKey
}

// OpenSigningSession returns a single-use capability if the backend holds
// the private half of pub.
//
//nolint:ireturn // returning interface is intentional for abstraction
func (b *Backend) OpenSigningSession(_ context.Context, pub *keyring.PublicKey) (device.Session, error) {
	if pub == nil || pub.ECDSA == nil {
		return nil, errors.New("no public key material to sign for")
	}
	if pub.ECDSA.X.Cmp(b.key.X) != 0 || pub.ECDSA.Y.Cmp(b.key.Y) != 0 {
		return nil, errors.New("emulator does not hold the requested key")
	}
	return &session{key: b.key}, nil
}

// session is a single-use capability over the emulated key.
type session struct {
	key      *ecdsa.PrivateKey
	used     bool
	released bool
}

func (s *session) Sign(_ context.Context, digest []byte) (*big.Int, *big.Int, error) {
	if s.released {
		return nil, nil, errors.New("signing session already released")
	}
	if s.used {
		return nil, nil, errors.New("signing session already used")
	}
	s.used = true

	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to sign digest")
	}
	return r, sv, nil
}

func (s *session) Release() error {
	s.released = true
	return nil
}
