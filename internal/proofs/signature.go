package proofs

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var errScalarOverflow = errors.New("scalar is not below the group order")

// VerifySignature hashes message with SHA-256 and checks the compact signature
// against pubKey, which may be compressed or uncompressed.
//
// A false result with a nil error means the signature is well formed but does
// not verify. Wrong lengths, keys that are not on the curve and scalars that
// overflow the group order are reported as errors instead.
func VerifySignature(message, sig, pubKey []byte) (bool, error) {
	switch len(pubKey) {
	case CompressedPublicKeySize:
	case UncompressedPublicKeySize:
		// ParsePubKey also takes hybrid keys; only the 0x04 form is accepted here.
		if _, err := ParseUncompressedPublicKey(pubKey); err != nil {
			return false, err
		}
	default:
		return false, formatError("public key", len(pubKey), CompressedPublicKeySize, UncompressedPublicKeySize)
	}
	compact, err := ParseSignature(sig)
	if err != nil {
		return false, err
	}
	key, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false, parseError("public key", err)
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(compact.R()); overflow {
		return false, parseError("signature", errScalarOverflow)
	}
	if overflow := s.SetByteSlice(compact.S()); overflow {
		return false, parseError("signature", errScalarOverflow)
	}
	// Only normalized (low-S) signatures verify.
	if s.IsOverHalfOrder() {
		return false, nil
	}
	digest := SHA256(message)
	return ecdsa.NewSignature(&r, &s).Verify(digest[:], key), nil
}
