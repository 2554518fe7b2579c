package proofs

import (
	"bytes"
	"fmt"

	xerrors "PQ-Bitcoin/internal/errors"
)

// ClaimState tracks how far an identity claim got through verification.
type ClaimState int

const (
	StateUnverified ClaimState = iota
	StateSignatureChecked
	StateAddressConfirmed
	StateRejected
)

func (s ClaimState) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateSignatureChecked:
		return "signature_checked"
	case StateAddressConfirmed:
		return "address_confirmed"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s ClaimState) Terminal() bool {
	return s == StateAddressConfirmed || s == StateRejected
}

// IdentityClaim asserts that ClaimedAddress belongs to PublicKey under Scheme,
// backed by a signature over sha256(ClaimedAddress). AuxiliaryKey is carried
// through to the output untouched.
//
// A claim is single use: Verify runs the checks once and later calls return
// the recorded outcome.
type IdentityClaim struct {
	scheme         Scheme
	publicKey      []byte
	claimedAddress []byte
	signature      []byte
	auxiliaryKey   []byte

	state  ClaimState
	output *IdentityValues
	err    error
}

// NewIdentityClaim builds an unverified claim. The slices are copied.
func NewIdentityClaim(scheme Scheme, publicKey, claimedAddress, signature, auxiliaryKey []byte) *IdentityClaim {
	return &IdentityClaim{
		scheme:         scheme,
		publicKey:      bytes.Clone(publicKey),
		claimedAddress: bytes.Clone(claimedAddress),
		signature:      bytes.Clone(signature),
		auxiliaryKey:   bytes.Clone(auxiliaryKey),
		state:          StateUnverified,
	}
}

// Scheme returns the address scheme the claim is checked under.
func (c *IdentityClaim) Scheme() Scheme { return c.scheme }

// State returns the current verification state.
func (c *IdentityClaim) State() ClaimState { return c.state }

// Verify checks lengths, then the signature, then the address, in that order.
// Output is returned only when every check holds; on any failure the claim is
// Rejected and the returned error carries the cause.
func (c *IdentityClaim) Verify() (*IdentityValues, error) {
	if c.state.Terminal() {
		return c.output, c.err
	}
	if err := c.checkLengths(); err != nil {
		return c.reject(err)
	}

	ok, err := VerifySignature(c.claimedAddress, c.signature, c.publicKey)
	if err != nil {
		return c.reject(err)
	}
	if !ok {
		return c.reject(verificationError(StateUnverified.String(), "signature does not verify"))
	}
	c.state = StateSignatureChecked

	derived, err := c.scheme.Derive(c.publicKey)
	if err != nil {
		return c.reject(err)
	}
	if !bytes.Equal(derived, c.claimedAddress) {
		return c.reject(verificationError(StateSignatureChecked.String(), "address does not match public key"))
	}
	c.state = StateAddressConfirmed

	c.output = &IdentityValues{
		ClaimedAddress: bytes.Clone(c.claimedAddress),
		AuxiliaryKey:   bytes.Clone(c.auxiliaryKey),
	}
	return c.output, nil
}

func (c *IdentityClaim) checkLengths() error {
	keySize := c.scheme.KeySize()
	if keySize == 0 {
		return xerrors.New(CodeFormat, "unknown address scheme", xerrors.WithMetadata("scheme", c.scheme.String()))
	}
	if len(c.publicKey) != keySize {
		return formatError("public key", len(c.publicKey), keySize)
	}
	if want := c.scheme.AddressSize(); len(c.claimedAddress) != want {
		return formatError("claimed address", len(c.claimedAddress), want)
	}
	if len(c.signature) != SignatureSize {
		return formatError("signature", len(c.signature), SignatureSize)
	}
	return nil
}

func (c *IdentityClaim) reject(err error) (*IdentityValues, error) {
	c.state = StateRejected
	c.output = nil
	c.err = err
	return nil, err
}
