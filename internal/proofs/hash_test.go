package proofs

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPrimitivesMatchReferenceVectors(t *testing.T) {
	tests := []struct {
		input     string
		sha256    string
		ripemd160 string
	}{
		{
			input:     "",
			sha256:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			ripemd160: "9c1185a5c5e9fc54612808977ee8f548b2258d31",
		},
		{
			input:     "abc",
			sha256:    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			ripemd160: "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc",
		},
	}
	for _, tt := range tests {
		sha := SHA256([]byte(tt.input))
		require.Equal(t, tt.sha256, hex.EncodeToString(sha[:]), "sha256(%q)", tt.input)
		rmd := RIPEMD160([]byte(tt.input))
		require.Equal(t, tt.ripemd160, hex.EncodeToString(rmd[:]), "ripemd160(%q)", tt.input)
	}
}

func TestDoubleSHA256AndHash160Compose(t *testing.T) {
	data := []byte("pq public keys.")

	first := SHA256(data)
	require.Equal(t, SHA256(first[:]), DoubleSHA256(data))
	require.Equal(t, RIPEMD160(first[:]), Hash160(data))
}
