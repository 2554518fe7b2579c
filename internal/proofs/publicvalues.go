package proofs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PolynomialValues is the public output of the polynomial claim,
// ABI type tuple(uint32 x, uint32 a, uint32 y).
type PolynomialValues struct {
	X uint32 `abi:"x" json:"x"`
	A uint32 `abi:"a" json:"a"`
	Y uint32 `abi:"y" json:"y"`
}

// IdentityValues is the public output of an identity claim,
// ABI type tuple(bytes claimedAddress, bytes auxiliaryKey).
type IdentityValues struct {
	ClaimedAddress []byte `abi:"claimedAddress" json:"claimed_address"`
	AuxiliaryKey   []byte `abi:"auxiliaryKey" json:"auxiliary_key"`
}

// Field order and widths below are consumed by external verifier contracts.
var (
	polynomialArgs = tupleArguments([]abi.ArgumentMarshaling{
		{Name: "x", Type: "uint32"},
		{Name: "a", Type: "uint32"},
		{Name: "y", Type: "uint32"},
	})
	identityArgs = tupleArguments([]abi.ArgumentMarshaling{
		{Name: "claimedAddress", Type: "bytes"},
		{Name: "auxiliaryKey", Type: "bytes"},
	})

	errNonCanonical = errors.New("public values are not canonically encoded")
)

func tupleArguments(components []abi.ArgumentMarshaling) abi.Arguments {
	typ, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(fmt.Sprintf("proofs: invalid public values schema: %v", err))
	}
	return abi.Arguments{{Name: "publicValues", Type: typ}}
}

// Encode returns the ABI encoding of v as a single struct value: three
// 32-byte big-endian words.
func (v PolynomialValues) Encode() []byte {
	return mustPack(polynomialArgs, v)
}

// Encode returns the ABI encoding of v as a single struct value: an offset
// word followed by the dynamic tuple body.
func (v IdentityValues) Encode() []byte {
	if v.ClaimedAddress == nil {
		v.ClaimedAddress = []byte{}
	}
	if v.AuxiliaryKey == nil {
		v.AuxiliaryKey = []byte{}
	}
	return mustPack(identityArgs, v)
}

// DecodePolynomialValues parses data produced by PolynomialValues.Encode.
func DecodePolynomialValues(data []byte) (PolynomialValues, error) {
	var out PolynomialValues
	if err := unpackCanonical(polynomialArgs, data, &out); err != nil {
		return PolynomialValues{}, err
	}
	if !bytes.Equal(out.Encode(), data) {
		return PolynomialValues{}, errNonCanonical
	}
	return out, nil
}

// DecodeIdentityValues parses data produced by IdentityValues.Encode.
func DecodeIdentityValues(data []byte) (IdentityValues, error) {
	var out IdentityValues
	if err := unpackCanonical(identityArgs, data, &out); err != nil {
		return IdentityValues{}, err
	}
	if !bytes.Equal(out.Encode(), data) {
		return IdentityValues{}, errNonCanonical
	}
	return out, nil
}

func mustPack(args abi.Arguments, v any) []byte {
	packed, err := args.Pack(v)
	if err != nil {
		// The schemas are fixed and the Go types match them.
		panic(fmt.Sprintf("proofs: encode public values: %v", err))
	}
	return packed
}

func unpackCanonical(args abi.Arguments, data []byte, out any) (err error) {
	values, err := args.Unpack(data)
	if err != nil {
		return fmt.Errorf("decode public values: %w", err)
	}
	if len(values) != 1 {
		return fmt.Errorf("decode public values: expected 1 value, got %d", len(values))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode public values: %v", r)
		}
	}()
	abi.ConvertType(values[0], out)
	return nil
}
