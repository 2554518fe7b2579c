package proofs

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Public keys of the secret scalar 1.
const (
	generatorCompressed   = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	generatorUncompressed = "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestBitcoinAddressKnownVector(t *testing.T) {
	key, err := ParseCompressedPublicKey(mustHex(t, generatorCompressed))
	require.NoError(t, err)

	addr := BitcoinAddress(key)
	// base58check: 1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH
	assert.Equal(t, "00751e76e8199196d454941c45d1b3a323f1433bd6510d1634", hex.EncodeToString(addr[:]))
}

func TestBitcoinAddressLayout(t *testing.T) {
	for seed := 0; seed < 16; seed++ {
		var key CompressedPublicKey
		for i := range key {
			key[i] = byte(seed*31 + i*7)
		}
		addr := BitcoinAddress(key)

		require.Len(t, addr, 25)
		require.Equal(t, byte(0x00), addr[0])
		checksum := DoubleSHA256(addr[:21])
		require.Equal(t, checksum[:4], addr[21:25])
		require.Equal(t, addr, BitcoinAddress(key), "derivation must be deterministic")
	}
}

func TestAccountAddressKnownVector(t *testing.T) {
	key, err := ParseUncompressedPublicKey(mustHex(t, generatorUncompressed))
	require.NoError(t, err)

	addr := AccountAddress(key)
	assert.Equal(t, "7e5f4552091a69125d5dfcb7b8c2659029395bdf", hex.EncodeToString(addr[:]))
}

func TestSchemeDeriveChecksKeyWidth(t *testing.T) {
	compressed := mustHex(t, generatorCompressed)
	uncompressed := mustHex(t, generatorUncompressed)

	addr, err := SchemeBitcoin.Derive(compressed)
	require.NoError(t, err)
	assert.Len(t, addr, BitcoinAddressSize)

	addr, err = SchemeAccount.Derive(uncompressed)
	require.NoError(t, err)
	assert.Len(t, addr, AccountAddressSize)

	_, err = SchemeBitcoin.Derive(uncompressed)
	require.ErrorIs(t, err, ErrFormat)
	_, err = SchemeAccount.Derive(compressed)
	require.ErrorIs(t, err, ErrFormat)
	_, err = SchemeBitcoin.Derive(compressed[:32])
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, SchemeBitcoin, s)

	s, err = ParseScheme("eth")
	require.NoError(t, err)
	assert.Equal(t, SchemeAccount, s)
	assert.Equal(t, "account", s.String())

	_, err = ParseScheme("solana")
	assert.Error(t, err)
}
