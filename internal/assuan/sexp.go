package assuan

import (
	"fmt"
	"math/big"
)

// scalarSize is the byte width of r and s for a 256-bit curve.
const scalarSize = 32

// signatureTemplate is the exact libgcrypt S-expression GnuPG expects for an
// ECDSA signature. The nested length prefixes are part of the wire contract
// and must be reproduced byte for byte.
const signatureTemplate = "(7:sig-val(5:ecdsa(1:r32:%s)(1:s32:%s)))\n"

// EncodeSignature serializes an ECDSA (r, s) pair into the GnuPG sig-val
// S-expression. Both integers are rendered as fixed-width 32-byte big-endian
// values and escaped, since the raw bytes may contain reserved characters.
func EncodeSignature(r, s *big.Int) string {
	var rb, sb [scalarSize]byte
	r.FillBytes(rb[:])
	s.FillBytes(sb[:])
	return fmt.Sprintf(signatureTemplate, Escape(string(rb[:])), Escape(string(sb[:])))
}
