// Package pkcs11hsm signs through a PKCS#11 module (SoftHSM or a hardware
// token). The private key never leaves the module; it is addressed by its
// GnuPG keygrip stored as CKA_ID.
package pkcs11hsm

import (
	"context"
	"math/big"
	"os"
	"sync"

	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"

	"github.com/Quaternioneer/trezor-agent/internal/device"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
	"github.com/Quaternioneer/trezor-agent/internal/util"
)

// signatureSize is the raw r||s output length for P-256 under CKM_ECDSA.
const signatureSize = 64

// Backend holds one logged-in PKCS#11 session. Signing sessions serialize on
// the backend mutex, so exactly one signature operation is in flight at a
// time regardless of how many agent connections are active.
type Backend struct {
	ctx     *pkcs11.Ctx
	slot    uint
	session pkcs11.SessionHandle
	mu      sync.Mutex
}

// New loads the PKCS#11 library, opens a session on the given slot and logs
// in with pin.
func New(libraryPath string, slot uint, pin string) (*Backend, error) {
	if libraryPath == "" {
		return nil, errors.New("PKCS#11 library path is required")
	}
	if _, err := os.Stat(libraryPath); os.IsNotExist(err) {
		return nil, errors.Errorf("PKCS#11 library not found at %s", libraryPath)
	}

	ctx := pkcs11.New(libraryPath)
	if ctx == nil {
		return nil, errors.Errorf("failed to load PKCS#11 library from %s", libraryPath)
	}

	if err := ctx.Initialize(); err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrap(err, "failed to initialize PKCS#11")
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrap(err, "failed to get PKCS#11 slot list")
	}

	slotExists := false
	for _, s := range slots {
		if s == slot {
			slotExists = true
			break
		}
	}
	if !slotExists {
		_ = ctx.Finalize()
		return nil, errors.Errorf("PKCS#11 slot %d does not exist, available slots: %v", slot, slots)
	}

	session, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrapf(err, "failed to open PKCS#11 session on slot %d", slot)
	}

	if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
		_ = ctx.CloseSession(session)
		_ = ctx.Finalize()
		return nil, errors.Wrap(err, "failed to login to PKCS#11")
	}

	return &Backend{
		ctx:     ctx,
		slot:    slot,
		session: session,
	}, nil
}

// Close logs out and unloads the module.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}

	_ = b.ctx.Logout(b.session)
	_ = b.ctx.CloseSession(b.session)
	_ = b.ctx.Finalize()
	b.ctx = nil
	return nil
}

// OpenSigningSession locates the private key whose CKA_ID equals the keygrip
// of pub and returns a single-use capability bound to it. The backend mutex
// is held until the capability is released.
//
//nolint:ireturn // returning interface is intentional for abstraction
func (b *Backend) OpenSigningSession(ctx context.Context, pub *keyring.PublicKey) (device.Session, error) {
	util.LogFromContext(ctx).Debug().Hex("keygrip", pub.Keygrip).Msg("Opening PKCS#11 signing session")

	b.mu.Lock()

	if b.ctx == nil {
		b.mu.Unlock()
		return nil, errors.New("PKCS#11 backend is closed")
	}

	key, err := b.findPrivateKey(pub.Keygrip)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	return &signingSession{backend: b, key: key}, nil
}

func (b *Backend) findPrivateKey(keygrip []byte) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_ID, keygrip),
	}

	if err := b.ctx.FindObjectsInit(b.session, template); err != nil {
		return 0, errors.Wrap(err, "failed to initialize private key search")
	}

	handles, _, err := b.ctx.FindObjects(b.session, 1)
	if finalErr := b.ctx.FindObjectsFinal(b.session); finalErr != nil {
		return 0, errors.Wrap(finalErr, "failed to finalize private key search")
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to find private key")
	}
	if len(handles) == 0 {
		return 0, errors.Errorf("no private key with keygrip %x", keygrip)
	}

	return handles[0], nil
}

// signingSession is a capability over one private key object. It owns the
// backend mutex until released.
type signingSession struct {
	backend  *Backend
	key      pkcs11.ObjectHandle
	released bool
}

// Sign signs a precomputed digest with CKM_ECDSA and splits the raw 64-byte
// output into (r, s).
func (s *signingSession) Sign(_ context.Context, digest []byte) (*big.Int, *big.Int, error) {
	if s.released {
		return nil, nil, errors.New("signing session already released")
	}

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_ECDSA, nil)}
	if err := s.backend.ctx.SignInit(s.backend.session, mech, s.key); err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize signing")
	}

	sig, err := s.backend.ctx.Sign(s.backend.session, digest)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to sign digest")
	}
	if len(sig) != signatureSize {
		return nil, nil, errors.Errorf("unexpected signature length %d", len(sig))
	}

	r := new(big.Int).SetBytes(sig[:signatureSize/2])
	ss := new(big.Int).SetBytes(sig[signatureSize/2:])
	return r, ss, nil
}

// Release unlocks the backend for the next signing session.
func (s *signingSession) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	s.backend.mu.Unlock()
	return nil
}
