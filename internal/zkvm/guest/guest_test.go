package guest

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/zkvm"
)

var aux = []byte("pq public keys.")

func run(t *testing.T, p zkvm.Program, stdin *zkvm.Stdin) ([]byte, error) {
	t.Helper()
	var out zkvm.PublicValues
	err := p.Run(stdin.Reader(), &out)
	return out.Bytes(), err
}

func identityStdin(t *testing.T, scheme proofs.Scheme, mutate func(addr []byte)) (*zkvm.Stdin, []byte) {
	t.Helper()
	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	var pub []byte
	if scheme == proofs.SchemeBitcoin {
		pub = crypto.CompressPubkey(&key.PublicKey)
	} else {
		pub = crypto.FromECDSAPub(&key.PublicKey)
	}
	addr, err := scheme.Derive(pub)
	require.NoError(t, err)
	digest := proofs.SHA256(addr)
	sig, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)

	claimed := append([]byte(nil), addr...)
	if mutate != nil {
		mutate(claimed)
	}
	stdin := zkvm.NewStdin()
	stdin.WriteBytes(pub)
	stdin.WriteBytes(claimed)
	stdin.WriteBytes(sig[:64])
	stdin.WriteBytes(aux)
	return stdin, addr
}

func TestPolynomialProgram(t *testing.T) {
	stdin := zkvm.NewStdin()
	stdin.WriteU32(7)
	stdin.WriteU32(3)
	stdin.WriteU32(8)

	out, err := run(t, Polynomial{}, stdin)
	require.NoError(t, err)
	assert.Equal(t,
		"0000000000000000000000000000000000000000000000000000000000000007"+
			"0000000000000000000000000000000000000000000000000000000000000003"+
			"0000000000000000000000000000000000000000000000000000000000000174",
		hex.EncodeToString(out))

	decoded, err := Decode(PolynomialName, out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": uint32(7), "a": uint32(3), "y": uint32(372)}, decoded)
}

func TestPolynomialProgramShortInput(t *testing.T) {
	stdin := zkvm.NewStdin()
	stdin.WriteU32(7)

	out, err := run(t, Polynomial{}, stdin)
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestBitcoinIdentityProgram(t *testing.T) {
	stdin, addr := identityStdin(t, proofs.SchemeBitcoin, nil)

	out, err := run(t, BitcoinIdentity(), stdin)
	require.NoError(t, err)
	assert.Len(t, out, 224)

	decoded, err := Decode(BitcoinIdentityName, out)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Bytes(addr), decoded["claimed_address"])
	assert.Equal(t, hexutil.Bytes(aux), decoded["auxiliary_key"])
}

func TestBitcoinIdentityProgramRejectsFlippedAddress(t *testing.T) {
	stdin, _ := identityStdin(t, proofs.SchemeBitcoin, func(addr []byte) {
		addr[len(addr)-1] ^= 0x01
	})

	out, err := run(t, BitcoinIdentity(), stdin)
	require.ErrorIs(t, err, proofs.ErrVerification)
	assert.Empty(t, out)
}

func TestAccountIdentityProgram(t *testing.T) {
	stdin, addr := identityStdin(t, proofs.SchemeAccount, nil)

	out, err := run(t, AccountIdentity(), stdin)
	require.NoError(t, err)
	values, err := proofs.DecodeIdentityValues(out)
	require.NoError(t, err)
	assert.Equal(t, addr, values.ClaimedAddress)
	assert.Len(t, addr, proofs.AccountAddressSize)
}

func TestIdentityProgramWrongSchemeKey(t *testing.T) {
	// An uncompressed key fed to the bitcoin program fails the width check.
	stdin, _ := identityStdin(t, proofs.SchemeAccount, nil)
	out, err := run(t, BitcoinIdentity(), stdin)
	require.ErrorIs(t, err, proofs.ErrFormat)
	assert.Empty(t, out)
}

func TestRegistryAndDecode(t *testing.T) {
	assert.Equal(t, []string{AccountIdentityName, BitcoinIdentityName, PolynomialName}, Registry().Names())

	_, err := Decode("missing", nil)
	assert.Error(t, err)
	_, err = Decode(PolynomialName, []byte{1, 2, 3})
	assert.Error(t, err)
}
