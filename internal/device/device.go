// Package device abstracts the signing hardware the agent delegates
// private-key operations to.
package device

import (
	"context"
	"math/big"

	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

// Backend opens signing sessions against resolved public keys.
// All implementations (PKCS#11 modules, hardware tokens, the in-process
// emulator) must implement this interface.
type Backend interface {
	// OpenSigningSession acquires a capability to sign with the private half
	// of pub. The caller must Release the returned session on every path.
	OpenSigningSession(ctx context.Context, pub *keyring.PublicKey) (Session, error)
}

// Session is a scoped, single-use capability to sign one digest.
type Session interface {
	// Sign signs a precomputed digest. The digest is not re-hashed by the
	// backend. r and s are the raw ECDSA signature integers.
	Sign(ctx context.Context, digest []byte) (r, s *big.Int, err error)

	// Release returns the capability. It is safe to call more than once.
	Release() error
}
