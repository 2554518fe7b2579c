// Package witness prepares guest inputs on the host side: it derives the
// claimed address for a secret key, signs it, and lays the frames out in the
// order each guest program reads them.
package witness

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/zkvm"
)

// DefaultAuxiliaryKey is the placeholder post-quantum key material committed
// alongside the address when none is supplied.
var DefaultAuxiliaryKey = []byte("pq public keys.")

// Polynomial writes x, a and the private b.
func Polynomial(x, a, b uint32) *zkvm.Stdin {
	stdin := zkvm.NewStdin()
	stdin.WriteU32(x)
	stdin.WriteU32(a)
	stdin.WriteU32(b)
	return stdin
}

// Identity is a complete identity claim witness.
type Identity struct {
	Scheme       proofs.Scheme
	PublicKey    []byte
	Address      []byte
	Signature    []byte
	AuxiliaryKey []byte
}

// NewIdentity derives the address of key under scheme and signs sha256(address).
func NewIdentity(scheme proofs.Scheme, key *ecdsa.PrivateKey, auxiliaryKey []byte) (*Identity, error) {
	if key == nil {
		return nil, fmt.Errorf("secret key is required")
	}
	var pub []byte
	switch scheme {
	case proofs.SchemeBitcoin:
		pub = crypto.CompressPubkey(&key.PublicKey)
	case proofs.SchemeAccount:
		pub = crypto.FromECDSAPub(&key.PublicKey)
	default:
		return nil, fmt.Errorf("unsupported scheme %s", scheme)
	}
	address, err := scheme.Derive(pub)
	if err != nil {
		return nil, err
	}
	sig, err := SignAddress(key, address)
	if err != nil {
		return nil, err
	}
	if auxiliaryKey == nil {
		auxiliaryKey = DefaultAuxiliaryKey
	}
	return &Identity{
		Scheme:       scheme,
		PublicKey:    pub,
		Address:      address,
		Signature:    sig,
		AuxiliaryKey: append([]byte(nil), auxiliaryKey...),
	}, nil
}

// Stdin writes pubkey, address, signature and auxiliary key in that order.
func (w *Identity) Stdin() *zkvm.Stdin {
	stdin := zkvm.NewStdin()
	stdin.WriteBytes(w.PublicKey)
	stdin.WriteBytes(w.Address)
	stdin.WriteBytes(w.Signature)
	stdin.WriteBytes(w.AuxiliaryKey)
	return stdin
}

// SignAddress returns the 64-byte compact signature of sha256(address).
func SignAddress(key *ecdsa.PrivateKey, address []byte) ([]byte, error) {
	digest := proofs.SHA256(address)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign address: %w", err)
	}
	return sig[:proofs.SignatureSize], nil
}

// GenerateKey returns a fresh secp256k1 secret key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// ParseSecretKey parses a hex secret key, with or without a 0x prefix.
func ParseSecretKey(raw string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse secret key: %w", err)
	}
	return key, nil
}
