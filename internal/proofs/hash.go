package proofs

import (
	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/ripemd160"
)

const (
	// SHA256Size is the width of a SHA-256 digest.
	SHA256Size = sha256.Size
	// RIPEMD160Size is the width of a RIPEMD-160 digest.
	RIPEMD160Size = ripemd160.Size
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [SHA256Size]byte {
	return sha256.Sum256(data)
}

// DoubleSHA256 returns sha256(sha256(data)).
func DoubleSHA256(data []byte) [SHA256Size]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// RIPEMD160 returns the RIPEMD-160 digest of data.
func RIPEMD160(data []byte) [RIPEMD160Size]byte {
	h := ripemd160.New()
	h.Write(data)
	var out [RIPEMD160Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hash160 returns ripemd160(sha256(data)).
func Hash160(data []byte) [RIPEMD160Size]byte {
	digest := SHA256(data)
	return RIPEMD160(digest[:])
}
