package proofs

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Scheme selects the rules used to derive an address from a public key.
type Scheme uint8

const (
	// SchemeBitcoin derives a versioned, checksummed P2PKH payload from a compressed key.
	SchemeBitcoin Scheme = iota + 1
	// SchemeAccount derives an Ethereum-style account address from an uncompressed key.
	SchemeAccount
)

const (
	// BitcoinVersion is the mainnet P2PKH version byte.
	BitcoinVersion byte = 0x00
	// BitcoinAddressSize is version byte + hash160 + checksum.
	BitcoinAddressSize = 1 + RIPEMD160Size + bitcoinChecksumSize
	// AccountAddressSize is the trailing part of the keccak256 digest kept as the address.
	AccountAddressSize = 20

	bitcoinChecksumSize = 4
	bitcoinPayloadSize  = 1 + RIPEMD160Size
)

// ParseScheme maps a scheme name to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bitcoin", "btc":
		return SchemeBitcoin, nil
	case "account", "ethereum", "eth":
		return SchemeAccount, nil
	}
	return 0, fmt.Errorf("unknown address scheme %q", name)
}

func (s Scheme) String() string {
	switch s {
	case SchemeBitcoin:
		return "bitcoin"
	case SchemeAccount:
		return "account"
	}
	return fmt.Sprintf("scheme(%d)", uint8(s))
}

// KeySize is the public key width the scheme accepts.
func (s Scheme) KeySize() int {
	switch s {
	case SchemeBitcoin:
		return CompressedPublicKeySize
	case SchemeAccount:
		return UncompressedPublicKeySize
	}
	return 0
}

// AddressSize is the width of addresses the scheme produces.
func (s Scheme) AddressSize() int {
	switch s {
	case SchemeBitcoin:
		return BitcoinAddressSize
	case SchemeAccount:
		return AccountAddressSize
	}
	return 0
}

// Derive checks the key width for the scheme and returns its address.
func (s Scheme) Derive(pubKey []byte) ([]byte, error) {
	switch s {
	case SchemeBitcoin:
		key, err := ParseCompressedPublicKey(pubKey)
		if err != nil {
			return nil, err
		}
		addr := BitcoinAddress(key)
		return addr[:], nil
	case SchemeAccount:
		key, err := ParseUncompressedPublicKey(pubKey)
		if err != nil {
			return nil, err
		}
		addr := AccountAddress(key)
		return addr[:], nil
	}
	return nil, fmt.Errorf("unknown address scheme %d", uint8(s))
}

// BitcoinAddress returns version || ripemd160(sha256(key)) || checksum, where the
// checksum is the first four bytes of sha256(sha256(version || hash160)).
func BitcoinAddress(key CompressedPublicKey) [BitcoinAddressSize]byte {
	var addr [BitcoinAddressSize]byte
	addr[0] = BitcoinVersion
	digest := Hash160(key[:])
	copy(addr[1:bitcoinPayloadSize], digest[:])
	checksum := DoubleSHA256(addr[:bitcoinPayloadSize])
	copy(addr[bitcoinPayloadSize:], checksum[:bitcoinChecksumSize])
	return addr
}

// AccountAddress returns the last 20 bytes of keccak256 over the key coordinates,
// skipping the one-byte form prefix.
func AccountAddress(key UncompressedPublicKey) [AccountAddressSize]byte {
	var addr [AccountAddressSize]byte
	digest := crypto.Keccak256(key[1:])
	copy(addr[:], digest[len(digest)-AccountAddressSize:])
	return addr
}
