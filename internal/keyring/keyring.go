// Package keyring resolves the public key material the agent signs for.
package keyring

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"os"

	pgpecdsa "github.com/ProtonMail/go-crypto/openpgp/ecdsa"
	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound    = errors.New("no matching public key in keyring")
	ErrUnsupportedKey = errors.New("primary key is not an ECDSA P-256 key")
)

// PublicKey is an exported keyring entry: the OpenPGP identity plus the
// material needed to address the same key on a signing device.
type PublicKey struct {
	Identity    string
	Fingerprint []byte
	Keygrip     []byte
	ECDSA       *ecdsa.PublicKey
}

// Registry exports public keys and their metadata. An empty userID selects
// the registry's default identity.
type Registry interface {
	ExportPublicKey(ctx context.Context, userID string) (*PublicKey, error)
}

// fileRegistry reads a single armored OpenPGP public key from disk.
type fileRegistry struct {
	path string
}

// NewFileRegistry creates a registry backed by an armored public key file.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewFileRegistry(path string) Registry {
	return &fileRegistry{path: path}
}

// ExportPublicKey loads and parses the configured key file. The file holds
// exactly one key, so a non-empty userID must match its primary identity.
func (r *fileRegistry) ExportPublicKey(_ context.Context, userID string) (*PublicKey, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keyring file")
	}

	key, err := crypto.NewKeyFromArmored(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse armored public key")
	}

	entity := key.GetEntity()
	identity := ""
	if primary := entity.PrimaryIdentity(); primary != nil {
		identity = primary.Name
	}
	if userID != "" && identity != userID {
		return nil, errors.Wrapf(ErrKeyNotFound, "user id %q", userID)
	}

	pub, err := primaryECDSAKey(entity.PrimaryKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &PublicKey{
		Identity:    identity,
		Fingerprint: entity.PrimaryKey.Fingerprint,
		Keygrip:     Keygrip(pub),
		ECDSA:       pub,
	}, nil
}

// primaryECDSAKey normalizes the parsed key material to a stdlib P-256 key.
// go-crypto uses its own ECDSA type for OpenPGP keys.
func primaryECDSAKey(material interface{}) (*ecdsa.PublicKey, error) {
	switch pub := material.(type) {
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return nil, ErrUnsupportedKey
		}
		return pub, nil
	case *pgpecdsa.PublicKey:
		if !elliptic.P256().IsOnCurve(pub.X, pub.Y) {
			return nil, ErrUnsupportedKey
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: pub.X, Y: pub.Y}, nil
	default:
		return nil, ErrUnsupportedKey
	}
}
