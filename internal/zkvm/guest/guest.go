// Package guest contains the programs the proving host runs. Each program
// reads its inputs in a fixed order, runs one claim core from package proofs
// and commits the ABI-encoded public values only when the claim holds.
package guest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/zkvm"
)

const (
	PolynomialName      = "polynomial"
	BitcoinIdentityName = "bitcoin-identity"
	AccountIdentityName = "account-identity"
)

// Polynomial reads u32 x, u32 a, u32 b and commits (x, a, y).
type Polynomial struct{}

func (Polynomial) Name() string { return PolynomialName }

func (Polynomial) Run(in *zkvm.Reader, out *zkvm.PublicValues) error {
	x, err := in.ReadU32()
	if err != nil {
		return err
	}
	a, err := in.ReadU32()
	if err != nil {
		return err
	}
	b, err := in.ReadU32()
	if err != nil {
		return err
	}
	values := proofs.PolynomialClaim{X: x, A: a, B: b}.Evaluate()
	out.CommitSlice(values.Encode())
	return nil
}

// Identity reads pubkey, claimed address, signature and auxiliary key, and
// commits (claimed address, auxiliary key) once the claim is confirmed.
type Identity struct {
	scheme proofs.Scheme
	name   string
}

// BitcoinIdentity checks a compressed key against a P2PKH payload.
func BitcoinIdentity() Identity {
	return Identity{scheme: proofs.SchemeBitcoin, name: BitcoinIdentityName}
}

// AccountIdentity checks an uncompressed key against an account address.
func AccountIdentity() Identity {
	return Identity{scheme: proofs.SchemeAccount, name: AccountIdentityName}
}

func (p Identity) Name() string { return p.name }

// Scheme returns the address scheme the program checks.
func (p Identity) Scheme() proofs.Scheme { return p.scheme }

func (p Identity) Run(in *zkvm.Reader, out *zkvm.PublicValues) error {
	var frames [4][]byte
	for i := range frames {
		frame, err := in.ReadBytes()
		if err != nil {
			return err
		}
		frames[i] = frame
	}
	claim := proofs.NewIdentityClaim(p.scheme, frames[0], frames[1], frames[2], frames[3])
	values, err := claim.Verify()
	if err != nil {
		return err
	}
	out.CommitSlice(values.Encode())
	return nil
}

// Programs returns every guest program.
func Programs() []zkvm.Program {
	return []zkvm.Program{Polynomial{}, BitcoinIdentity(), AccountIdentity()}
}

// Registry returns a registry holding every guest program.
func Registry() *zkvm.Registry {
	r, err := zkvm.NewRegistry(Programs()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Decode parses public values committed by the named program into fields
// suitable for JSON output. Byte fields are hex encoded.
func Decode(program string, publicValues []byte) (map[string]any, error) {
	switch program {
	case PolynomialName:
		v, err := proofs.DecodePolynomialValues(publicValues)
		if err != nil {
			return nil, err
		}
		return map[string]any{"x": v.X, "a": v.A, "y": v.Y}, nil
	case BitcoinIdentityName, AccountIdentityName:
		v, err := proofs.DecodeIdentityValues(publicValues)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"claimed_address": hexutil.Bytes(v.ClaimedAddress),
			"auxiliary_key":   hexutil.Bytes(v.AuxiliaryKey),
		}, nil
	}
	return nil, fmt.Errorf("unknown program %q", program)
}
