package proofs

import "errors"

const (
	// CompressedPublicKeySize is a parity byte followed by the 32-byte x coordinate.
	CompressedPublicKeySize = 33
	// UncompressedPublicKeySize is the 0x04 prefix followed by both coordinates.
	UncompressedPublicKeySize = 65
	// UncompressedPrefix is the SEC1 form byte of an uncompressed key.
	UncompressedPrefix byte = 0x04
	// SignatureSize is a compact ECDSA signature, r || s.
	SignatureSize = 64
)

// CompressedPublicKey is a SEC1 compressed secp256k1 public key.
type CompressedPublicKey [CompressedPublicKeySize]byte

// UncompressedPublicKey is a SEC1 uncompressed secp256k1 public key.
type UncompressedPublicKey [UncompressedPublicKeySize]byte

// Signature is a compact ECDSA signature.
type Signature [SignatureSize]byte

// ParseCompressedPublicKey copies b into a CompressedPublicKey. Only the length
// is checked; curve membership is checked when the key is used for verification.
func ParseCompressedPublicKey(b []byte) (CompressedPublicKey, error) {
	var key CompressedPublicKey
	if len(b) != CompressedPublicKeySize {
		return key, formatError("public key", len(b), CompressedPublicKeySize)
	}
	copy(key[:], b)
	return key, nil
}

// ParseUncompressedPublicKey copies b into an UncompressedPublicKey. The key
// must carry the 0x04 prefix; hybrid keys (0x06, 0x07) are CRYPTO_PARSE_ERROR.
func ParseUncompressedPublicKey(b []byte) (UncompressedPublicKey, error) {
	var key UncompressedPublicKey
	if len(b) != UncompressedPublicKeySize {
		return key, formatError("public key", len(b), UncompressedPublicKeySize)
	}
	if b[0] != UncompressedPrefix {
		return key, parseError("public key", errUncompressedPrefix)
	}
	copy(key[:], b)
	return key, nil
}

var errUncompressedPrefix = errors.New("uncompressed key must start with 0x04")

// ParseSignature copies b into a Signature.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, formatError("signature", len(b), SignatureSize)
	}
	copy(sig[:], b)
	return sig, nil
}

// R returns the first scalar of the signature.
func (s Signature) R() []byte { return s[:32] }

// S returns the second scalar of the signature.
func (s Signature) S() []byte { return s[32:] }
