package keyring

import (
	"crypto/ecdsa"
	"crypto/sha1" //nolint:gosec // keygrip is defined by GnuPG as SHA-1
	"fmt"
	"math/big"
)

// scalarSize is the byte width of a P-256 field element.
const scalarSize = 32

// Keygrip computes the GnuPG keygrip of a NIST P-256 public key: the SHA-1
// over the libgcrypt parameter S-expression (p, a, b, g, n, q). GnuPG uses
// it to address the private half of the key, independent of the OpenPGP
// fingerprint.
func Keygrip(pub *ecdsa.PublicKey) []byte {
	params := pub.Curve.Params()

	// a = p - 3 for the NIST curves; crypto/elliptic does not expose it.
	a := new(big.Int).Sub(params.P, big.NewInt(3))

	vals := []struct {
		name byte
		val  []byte
	}{
		{'p', fixedBytes(params.P)},
		{'a', fixedBytes(a)},
		{'b', fixedBytes(params.B)},
		{'g', pointBytes(params.Gx, params.Gy)},
		{'n', fixedBytes(params.N)},
		{'q', pointBytes(pub.X, pub.Y)},
	}

	h := sha1.New() //nolint:gosec // keygrip is defined by GnuPG as SHA-1
	for _, v := range vals {
		fmt.Fprintf(h, "(1:%c%d:", v.name, len(v.val))
		h.Write(v.val)
		h.Write([]byte(")"))
	}
	return h.Sum(nil)
}

func fixedBytes(v *big.Int) []byte {
	out := make([]byte, scalarSize)
	v.FillBytes(out)
	return out
}

// pointBytes renders an EC point in the uncompressed SEC1 form 0x04 || X || Y.
func pointBytes(x, y *big.Int) []byte {
	out := make([]byte, 1+2*scalarSize)
	out[0] = 0x04
	x.FillBytes(out[1 : 1+scalarSize])
	y.FillBytes(out[1+scalarSize:])
	return out
}
