package proofs

import (
	"crypto/ecdsa"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "PQ-Bitcoin/internal/errors"
)

func testKey(t *testing.T, seed byte) *ecdsa.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = 0x42
	raw[31] = seed
	key, err := crypto.ToECDSA(raw)
	require.NoError(t, err)
	return key
}

func signSHA256(t *testing.T, key *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	digest := SHA256(message)
	sig, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)
	return sig[:SignatureSize]
}

func TestVerifySignatureAcceptsBothKeyForms(t *testing.T) {
	key := testKey(t, 1)
	message := []byte("address bytes")
	sig := signSHA256(t, key, message)

	ok, err := VerifySignature(message, sig, crypto.CompressPubkey(&key.PublicKey))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature(message, sig, crypto.FromECDSAPub(&key.PublicKey))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySignatureHashesBeforeVerifying(t *testing.T) {
	key := testKey(t, 2)
	message := []byte("address bytes")
	digest := SHA256(message)

	// Only sha256(message) is accepted as the signed digest.
	raw, err := crypto.Sign(crypto.Keccak256(message), key)
	require.NoError(t, err)
	ok, err := VerifySignature(message, raw[:64], crypto.CompressPubkey(&key.PublicKey))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifySignature(digest[:], signSHA256(t, key, message), crypto.CompressPubkey(&key.PublicKey))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureFailsOnAnySingleByteChange(t *testing.T) {
	key := testKey(t, 3)
	message := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	sig := signSHA256(t, key, message)
	pub := crypto.CompressPubkey(&key.PublicKey)

	for i := range message {
		tampered := append([]byte(nil), message...)
		tampered[i] ^= 0x01
		ok, err := VerifySignature(tampered, sig, pub)
		require.NoError(t, err)
		require.False(t, ok, "message byte %d", i)
	}
	for i := range sig {
		tampered := append([]byte(nil), sig...)
		tampered[i] ^= 0x01
		ok, _ := VerifySignature(message, tampered, pub)
		require.False(t, ok, "signature byte %d", i)
	}
	for i := range pub {
		tampered := append([]byte(nil), pub...)
		tampered[i] ^= 0x01
		ok, _ := VerifySignature(message, sig, tampered)
		require.False(t, ok, "public key byte %d", i)
	}
}

func TestVerifySignatureRejectsHighS(t *testing.T) {
	key := testKey(t, 4)
	message := []byte("normalized")
	sig := signSHA256(t, key, message)

	var s secp256k1.ModNScalar
	require.False(t, s.SetByteSlice(sig[32:]))
	s.Negate()
	high := append([]byte(nil), sig[:32]...)
	sBytes := s.Bytes()
	high = append(high, sBytes[:]...)

	ok, err := VerifySignature(message, high, crypto.CompressPubkey(&key.PublicKey))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureParseErrors(t *testing.T) {
	key := testKey(t, 5)
	message := []byte("parse")
	sig := signSHA256(t, key, message)
	pub := crypto.CompressPubkey(&key.PublicKey)

	_, err := VerifySignature(message, sig[:63], pub)
	require.ErrorIs(t, err, ErrFormat)

	_, err = VerifySignature(message, sig, pub[:32])
	require.ErrorIs(t, err, ErrFormat)
	xerr, ok := xerrors.From(err)
	require.True(t, ok)
	assert.Equal(t, "33,65", xerr.Metadata()["want"])

	overflow := append([]byte(nil), sig...)
	for i := 0; i < 32; i++ {
		overflow[i] = 0xff
	}
	_, err = VerifySignature(message, overflow, pub)
	require.ErrorIs(t, err, ErrCryptoParse)

	badPrefix := append([]byte(nil), pub...)
	badPrefix[0] = 0x05
	_, err = VerifySignature(message, sig, badPrefix)
	require.ErrorIs(t, err, ErrCryptoParse)
	assert.True(t, IsRejection(err))
}

func TestVerifySignatureRejectsHybridKeys(t *testing.T) {
	key := testKey(t, 6)
	message := []byte("hybrid")
	sig := signSHA256(t, key, message)
	pub := crypto.FromECDSAPub(&key.PublicKey)

	ok, err := VerifySignature(message, sig, pub)
	require.NoError(t, err)
	require.True(t, ok)

	for _, prefix := range []byte{0x06, 0x07} {
		hybrid := append([]byte(nil), pub...)
		hybrid[0] = prefix
		ok, err := VerifySignature(message, sig, hybrid)
		require.ErrorIs(t, err, ErrCryptoParse, "prefix %#x", prefix)
		assert.False(t, ok)

		_, err = ParseUncompressedPublicKey(hybrid)
		require.ErrorIs(t, err, ErrCryptoParse)
		_, err = SchemeAccount.Derive(hybrid)
		require.ErrorIs(t, err, ErrCryptoParse)
	}
}
